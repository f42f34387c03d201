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

package wire

import (
	"fmt"
	"strings"
)

// tokenKind classifies one lexical token of the constraint language.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAtom  // a bareword, number, timestamp, or operator like >=
	tokString
	tokArrowRight // ->
	tokArrowLeft  // <-
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexError carries the offending byte position so the parser can
// render a caret under the input line, the way partiql's lexer
// threads position through to its syntax errors.
type lexError struct {
	pos int
	msg string
}

func (e *lexError) Error() string { return fmt.Sprintf("wire: %s at offset %d", e.msg, e.pos) }

func isAtomByte(b byte) bool {
	switch b {
	case '(', ')', ' ', '\t', '\n', '\r', '"':
		return false
	default:
		return true
	}
}

// lexer splits input into tokens on demand; it is not safe for
// concurrent use.
type lexer struct {
	src string
	pos int
}

func newLexer(src string) *lexer { return &lexer{src: src} }

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case '"':
		return l.lexString()
	}
	if c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>' {
		l.pos += 2
		return token{kind: tokArrowRight, text: "->", pos: start}, nil
	}
	if c == '<' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '-' {
		l.pos += 2
		return token{kind: tokArrowLeft, text: "<-", pos: start}, nil
	}
	for l.pos < len(l.src) && isAtomByte(l.src[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		return token{}, &lexError{pos: start, msg: fmt.Sprintf("unexpected byte %q", c)}
	}
	return token{kind: tokAtom, text: l.src[start:l.pos], pos: start}, nil
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	var b strings.Builder
	l.pos++ // opening quote
	for {
		if l.pos >= len(l.src) {
			return token{}, &lexError{pos: start, msg: "unterminated string"}
		}
		c := l.src[l.pos]
		if c == '"' {
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos++
			switch l.src[l.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"', '\\':
				b.WriteByte(l.src[l.pos])
			default:
				b.WriteByte(l.src[l.pos])
			}
			l.pos++
			continue
		}
		b.WriteByte(c)
		l.pos++
	}
}
