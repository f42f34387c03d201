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

import (
	"regexp"
	"strings"
)

// globRegexp compiles a `~=` name/value glob pattern (`*` and `?`
// wildcards, case-sensitive) into an anchored stdlib regexp.
func globRegexp(pat string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pat {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// CompiledGlob is a Glob clause's operand after compilation. It is not
// stored on the Clause: the read engine compiles the operand each time
// it tests a name or value against a Glob clause.
type CompiledGlob struct {
	Pattern string
	re      *regexp.Regexp
}

// CompileGlob compiles pat once.
func CompileGlob(pat string) (*CompiledGlob, error) {
	re, err := globRegexp(pat)
	if err != nil {
		return nil, err
	}
	return &CompiledGlob{Pattern: pat, re: re}, nil
}

// Match reports whether s satisfies the glob.
func (g *CompiledGlob) Match(s string) bool { return g.re.MatchString(s) }
