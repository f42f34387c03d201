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

package constraint

import "testing"

func TestCompiledGlobMatch(t *testing.T) {
	cases := []struct {
		pat, s string
		want   bool
	}{
		{"Ali*", "Alice", true},
		{"Ali*", "Bob", false},
		{"A?ice", "Alice", true},
		{"A?ice", "Alicia", false},
		{"*", "anything", true},
		{"exact", "exact", true},
		{"exact", "exacto", false},
	}
	for _, c := range cases {
		g, err := CompileGlob(c.pat)
		if err != nil {
			t.Fatalf("CompileGlob(%q): %v", c.pat, err)
		}
		if got := g.Match(c.s); got != c.want {
			t.Errorf("Match(%q) against %q = %v, want %v", c.s, c.pat, got, c.want)
		}
	}
}
