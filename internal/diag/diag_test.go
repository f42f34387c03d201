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

package diag

import "testing"

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	l.Errorf("should not panic: %d", 1)
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{LevelDebug: "DEBUG", LevelInfo: "INFO", LevelError: "ERROR"}
	for lvl, want := range cases {
		if got := lvl.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", lvl, got, want)
		}
	}
}
