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

// Package graphderr implements the error-kind taxonomy returned by
// request evaluation.
//
// NotFound and More are deliberately not part of this package: they
// are propagated as first-class values, not exceptions, via the
// iterator.Signal type threaded through next/find/check return
// values. Everything else bubbles up to the request's top-level
// driver as an error, following the expr.SyntaxError/expr.TypeError
// pattern of small struct types that implement error and carry enough
// context (here: an error code plus the offending text) to format a
// client-facing reply line (`error "CODE message"`).
package graphderr

import "fmt"

// Code is one of the wire error codes sent back to a client.
type Code string

const (
	Syntax       Code = "SYNTAX"
	Semantics    Code = "SEMANTICS"
	System       Code = "SYSTEM"
	Empty        Code = "EMPTY"
	TooMany      Code = "TOOMANY"
	TooBig       Code = "TOOBIG"
	UniqueExists Code = "UNIQUE_EXISTS"
	Timeout      Code = "TIMEOUT"
	SMP          Code = "SMP"
	SMPWrite     Code = "SMPWRITE"
)

// Error is the concrete error type returned by every fallible
// operation in this module that is not NotFound/More.
type Error struct {
	Code Code
	Msg  string
	// At, if non-empty, names the constraint path the error was
	// raised against (e.g. "(type=Person name=Alice)"), mirroring
	// expr.SyntaxError.At rendering the offending node.
	At string
}

func (e *Error) Error() string {
	if e.At != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.At, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func newErr(c Code, f string, args ...any) *Error {
	return &Error{Code: c, Msg: fmt.Sprintf(f, args...)}
}

// Syntaxf reports malformed request syntax.
func Syntaxf(f string, args ...any) *Error { return newErr(Syntax, f, args...) }

// Semanticsf reports a semantically invalid constraint tree (missing
// key fields, bad variable scope, ...).
func Semanticsf(f string, args ...any) *Error { return newErr(Semantics, f, args...) }

// Systemf reports an unexpected I/O, allocation, or store error.
func Systemf(f string, args ...any) *Error { return newErr(System, f, args...) }

// TooBigf reports a primitive exceeding store limits.
func TooBigf(f string, args ...any) *Error { return newErr(TooBig, f, args...) }

// TooManyf reports a request matching more than its count bound allows.
func TooManyf(f string, args ...any) *Error { return newErr(TooMany, f, args...) }

// UniqueExistsf reports a unique-cluster integrity violation.
func UniqueExistsf(f string, args ...any) *Error { return newErr(UniqueExists, f, args...) }

// Timeoutf reports a request that exceeded its deadline.
func Timeoutf(f string, args ...any) *Error { return newErr(Timeout, f, args...) }

// SMPf reports a coordination failure with followers.
func SMPf(f string, args ...any) *Error { return newErr(SMP, f, args...) }

// SMPWritef reports a write rejected because this process is a
// read-only SMP follower.
func SMPWritef(f string, args ...any) *Error { return newErr(SMPWrite, f, args...) }

// At annotates err with the offending constraint path, if err is an
// *Error from this package.
func At(err error, where string) error {
	if e, ok := err.(*Error); ok && e.At == "" {
		cp := *e
		cp.At = where
		return &cp
	}
	return err
}
