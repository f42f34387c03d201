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

// Package wire implements the s-expression constraint-language reader,
// the reply-tree serializer, and cursor text encoding/decoding that
// sit between a raw client connection and internal/constraint's typed
// tree.
package wire

import (
	"fmt"

	"github.com/graphd/graphd/internal/graphderr"
)

// NodeKind distinguishes an atomic token from a parenthesized list in
// the raw parse tree, before it is lowered into a constraint.Arena.
type NodeKind int

const (
	KindAtom NodeKind = iota
	KindString
	KindList
)

// Node is one parsed s-expression: either an atom/string leaf or a
// list of child Nodes. Arrow shorthand (->, <-) is represented as a
// two-element list (arrow-kind atom, target atom) so a lowering pass
// can treat it uniformly with any other clause.
type Node struct {
	Kind     NodeKind
	Text     string // valid for KindAtom/KindString
	Children []Node // valid for KindList
	Pos      int
}

// String renders n back to its s-expression text, used by error
// messages that need to name "the offending node".
func (n Node) String() string {
	switch n.Kind {
	case KindAtom:
		return n.Text
	case KindString:
		return fmt.Sprintf("%q", n.Text)
	default:
		s := "("
		for i, c := range n.Children {
			if i > 0 {
				s += " "
			}
			s += c.String()
		}
		return s + ")"
	}
}

// Parse reads exactly one top-level s-expression from src and
// confirms there is no trailing garbage besides whitespace.
func Parse(src string) (Node, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return Node{}, graphderr.At(graphderr.Syntaxf("%s", err), src)
	}
	n, err := p.parseNode()
	if err != nil {
		return Node{}, err
	}
	if p.tok.kind != tokEOF {
		return Node{}, graphderr.At(graphderr.Syntaxf("unexpected trailing input %q", p.tok.text), src)
	}
	return n, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) parseNode() (Node, error) {
	switch p.tok.kind {
	case tokLParen:
		return p.parseList()
	case tokAtom:
		n := Node{Kind: KindAtom, Text: p.tok.text, Pos: p.tok.pos}
		if err := p.advance(); err != nil {
			return Node{}, graphderr.Syntaxf("%s", err)
		}
		return n, nil
	case tokString:
		n := Node{Kind: KindString, Text: p.tok.text, Pos: p.tok.pos}
		if err := p.advance(); err != nil {
			return Node{}, graphderr.Syntaxf("%s", err)
		}
		return n, nil
	case tokArrowRight, tokArrowLeft:
		arrow := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return Node{}, graphderr.Syntaxf("%s", err)
		}
		target, err := p.parseNode()
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindList, Pos: pos, Children: []Node{
			{Kind: KindAtom, Text: arrow, Pos: pos}, target,
		}}, nil
	case tokEOF:
		return Node{}, graphderr.Syntaxf("unexpected end of input")
	default:
		return Node{}, graphderr.Syntaxf("unexpected token %q", p.tok.text)
	}
}

func (p *parser) parseList() (Node, error) {
	pos := p.tok.pos
	if err := p.advance(); err != nil { // consume '('
		return Node{}, graphderr.Syntaxf("%s", err)
	}
	n := Node{Kind: KindList, Pos: pos}
	for {
		if p.tok.kind == tokRParen {
			if err := p.advance(); err != nil {
				return Node{}, graphderr.Syntaxf("%s", err)
			}
			return n, nil
		}
		if p.tok.kind == tokEOF {
			return Node{}, graphderr.Syntaxf("unterminated list starting at offset %d", pos)
		}
		child, err := p.parseNode()
		if err != nil {
			return Node{}, err
		}
		n.Children = append(n.Children, child)
	}
}

// Keyword splits an atom of the form "keyword=value" or
// "keyword!=value" (and the other comparison operators) into its
// parts. ok is false if n is not an atom or carries no operator.
func Keyword(n Node) (kw, op, value string, ok bool) {
	if n.Kind != KindAtom {
		return "", "", "", false
	}
	s := n.Text
	for i, op := range []string{"~=", "!=", "<=", ">=", "=", "<", ">"} {
		_ = i
		if idx := indexOf(s, op); idx > 0 {
			return s[:idx], op, s[idx+len(op):], true
		}
	}
	return "", "", "", false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
