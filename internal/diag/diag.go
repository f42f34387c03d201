// Copyright (C) 2024 graphd, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package diag is a thin leveled wrapper around the standard log
// package, used by the scheduler and store to distinguish
// error-worthy conditions (a read overshooting its deadline) from
// routine ones (a write overshooting, which is expected) without
// pulling in a structured logging dependency for a handful of
// call sites.
package diag

import (
	"log"
	"os"
)

// Level is the severity of one log line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger gates *log.Logger output by a minimum level.
type Logger struct {
	min  Level
	std  *log.Logger
}

// New creates a Logger writing to os.Stderr with the standard
// log package's default timestamp flags, emitting only lines at or
// above min.
func New(min Level) *Logger {
	return &Logger{min: min, std: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil || level < l.min {
		return
	}
	l.std.Printf("["+level.String()+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }
