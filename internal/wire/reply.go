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
	"strconv"
	"strings"

	"github.com/graphd/graphd/internal/graphderr"
)

// ReplyKind tags one node of a reply value tree.
type ReplyKind int

const (
	ReplyNull ReplyKind = iota
	ReplyBool
	ReplyNumber
	ReplyTimestamp
	ReplyString
	ReplyGUID
	ReplyList
)

// Reply is one node of the tagged value tree sent back to a client:
// atoms (null/true/false), numbers, timestamps, quoted strings,
// hex-encoded GUIDs, and lists that nest arbitrarily to form
// sequences of tuples.
type Reply struct {
	Kind  ReplyKind
	Bool  bool
	Num   int64
	Str   string // String/Timestamp/GUID payload
	Items []Reply
}

func Null() Reply                { return Reply{Kind: ReplyNull} }
func Bool(b bool) Reply          { return Reply{Kind: ReplyBool, Bool: b} }
func Number(n int64) Reply       { return Reply{Kind: ReplyNumber, Num: n} }
func Timestamp(iso string) Reply { return Reply{Kind: ReplyTimestamp, Str: iso} }
func String(s string) Reply      { return Reply{Kind: ReplyString, Str: s} }
func GUIDHex(hex string) Reply   { return Reply{Kind: ReplyGUID, Str: hex} }
func List(items ...Reply) Reply  { return Reply{Kind: ReplyList, Items: items} }

// Builder assembles a Reply list the way ion.Buffer's BeginList/
// EndList pair assembles a binary Ion list, so the code constructing a
// result tuple reads the same shape in either wire format.
type Builder struct {
	stack [][]Reply
}

// BeginList opens a new nested list.
func (b *Builder) BeginList() { b.stack = append(b.stack, nil) }

// EndList closes the innermost open list and appends it to its
// parent (or, if this was the outermost list, leaves it retrievable
// via Finish).
func (b *Builder) EndList() {
	n := len(b.stack)
	items := b.stack[n-1]
	b.stack = b.stack[:n-1]
	if len(b.stack) == 0 {
		b.stack = append(b.stack, append([]Reply(nil), List(items...)))
		return
	}
	b.stack[len(b.stack)-1] = append(b.stack[len(b.stack)-1], List(items...))
}

// Append adds a non-list value to the innermost open list.
func (b *Builder) Append(v Reply) {
	n := len(b.stack)
	b.stack[n-1] = append(b.stack[n-1], v)
}

// Finish returns the single completed top-level Reply. It panics if
// any BeginList was left unclosed, which indicates a caller bug.
func (b *Builder) Finish() Reply {
	if len(b.stack) != 1 || len(b.stack[0]) != 1 {
		panic("wire: Builder.Finish called with unbalanced BeginList/EndList")
	}
	return b.stack[0][0]
}

// Render writes r as constraint-language reply text onto dst.
func Render(dst *strings.Builder, r Reply) {
	switch r.Kind {
	case ReplyNull:
		dst.WriteString("null")
	case ReplyBool:
		if r.Bool {
			dst.WriteString("true")
		} else {
			dst.WriteString("false")
		}
	case ReplyNumber:
		dst.WriteString(strconv.FormatInt(r.Num, 10))
	case ReplyTimestamp, ReplyGUID:
		dst.WriteString(r.Str)
	case ReplyString:
		dst.WriteByte('"')
		for _, c := range r.Str {
			if c == '"' || c == '\\' {
				dst.WriteByte('\\')
			}
			dst.WriteRune(c)
		}
		dst.WriteByte('"')
	case ReplyList:
		dst.WriteByte('(')
		for i, item := range r.Items {
			if i > 0 {
				dst.WriteByte(' ')
			}
			Render(dst, item)
		}
		dst.WriteByte(')')
	}
}

// OK formats a successful read/iterate/write reply: "ok (<result>)".
func OK(result Reply) string {
	var b strings.Builder
	b.WriteString("ok ")
	Render(&b, result)
	return b.String()
}

// ErrorLine formats a client-facing error reply: `error "CODE message"`.
func ErrorLine(err error) string {
	if e, ok := err.(*graphderr.Error); ok {
		return fmt.Sprintf("error %q", string(e.Code)+" "+e.Msg)
	}
	return fmt.Sprintf("error %q", string(graphderr.System)+" "+err.Error())
}
