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

// Package request lowers the constraint-language text a client sends
// into a constraint.Arena, dispatches it to the read or write engine,
// and renders the result back into reply text - the glue between
// internal/wire's parser/serializer and the evaluation engines.
package request

import (
	"strconv"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/wire"
)

// Parsed is one lowered request: its kind, the arena/root it was
// built into, and an inbound cursor string (empty for a fresh
// request).
type Parsed struct {
	Kind   constraint.RequestKind
	Arena  *constraint.Arena
	Root   constraint.ID
	Cursor string
	Asof   string // raw decimal microsecond operand of asof=, if present
}

var commandKind = map[string]constraint.RequestKind{
	"read":    constraint.Read,
	"iterate": constraint.Iterate,
	"write":   constraint.Write,
}

// keyFieldBit names the key=/unique= bitmask bit for each intrinsic
// field keyword.
var keyFieldBit = map[string]uint32{
	"type":     constraint.FieldType,
	"name":     constraint.FieldName,
	"value":    constraint.FieldValue,
	"datatype": constraint.FieldDatatype,
	"timestamp": constraint.FieldTimestamp,
	"left":     constraint.FieldLeft,
	"right":    constraint.FieldRight,
	"typeguid": constraint.FieldTypeGuidLinkage,
	"scope":    constraint.FieldScope,
}

// resultFieldPattern builds the one-level pattern node for a bare
// field-name atom appearing inside a result=(...) tuple list.
func resultFieldPattern(name string) (*pattern.Pattern, bool) {
	switch name {
	case "guid":
		return pattern.Simple(pattern.Guid), true
	case "name":
		return pattern.Simple(pattern.Name), true
	case "value":
		return pattern.Simple(pattern.Value), true
	case "datatype":
		return pattern.Simple(pattern.Datatype), true
	case "timestamp":
		return pattern.Simple(pattern.Timestamp), true
	case "count":
		return pattern.Simple(pattern.Count), true
	case "cursor":
		return pattern.Simple(pattern.Cursor), true
	case "left", "right", "typeguid", "scope":
		l, _ := primitive.ParseLinkage(name)
		return pattern.NewLinkage(l), true
	default:
		return nil, false
	}
}

// Lower parses text (a bare command word followed by its clause body,
// e.g. `read (type="Person" name="Alice")`) into a Parsed request.
func Lower(text string) (Parsed, error) {
	root, err := wire.Parse("(" + text + ")")
	if err != nil {
		return Parsed{}, err
	}
	if root.Kind != wire.KindList || len(root.Children) == 0 {
		return Parsed{}, graphderr.Syntaxf("empty request")
	}
	cmdNode := root.Children[0]
	if cmdNode.Kind != wire.KindAtom {
		return Parsed{}, graphderr.Syntaxf("request must start with a command word")
	}
	kind, ok := commandKind[cmdNode.Text]
	if !ok {
		return Parsed{}, graphderr.Syntaxf("unrecognized command %q", cmdNode.Text)
	}

	a := constraint.NewArena()
	l := &lowerer{a: a}
	rootC := a.New()
	rootC.Parent = constraint.NoID
	if err := l.fields(rootC, flattenBody(root.Children[1:])); err != nil {
		return Parsed{}, err
	}
	return Parsed{Kind: kind, Arena: a, Root: rootC.ID(), Cursor: l.cursor, Asof: l.asof}, nil
}

// flattenBody normalizes a clause body to a flat sequence of
// keyword/operand/arrow nodes: a single wrapping list (the common
// `(type=X name=Y)` shape) is unwrapped one level; anything else is
// used as-is.
func flattenBody(nodes []wire.Node) []wire.Node {
	if len(nodes) == 1 && nodes[0].Kind == wire.KindList {
		return nodes[0].Children
	}
	return nodes
}

type lowerer struct {
	a      *constraint.Arena
	cursor string
	asof   string
}

// fields walks a flat clause sequence, applying each keyword=operand
// pair (or arrow shorthand) to c.
func (l *lowerer) fields(c *constraint.Constraint, nodes []wire.Node) error {
	for i := 0; i < len(nodes); {
		n := nodes[i]
		if isArrow(n) {
			dir := primitive.Left
			if n.Children[0].Text == "<-" {
				dir = primitive.Right
			}
			if err := l.linkageChild(c, dir, n.Children[1]); err != nil {
				return err
			}
			i++
			continue
		}
		if n.Kind != wire.KindAtom {
			return graphderr.Syntaxf("unexpected %v, want a keyword clause", n)
		}
		kw, op, val, ok := wire.Keyword(n)
		if !ok {
			return graphderr.Syntaxf("unrecognized clause %q", n.Text)
		}
		var operand wire.Node
		if val != "" {
			operand = wire.Node{Kind: wire.KindAtom, Text: val}
			i++
		} else {
			if i+1 >= len(nodes) {
				return graphderr.Syntaxf("keyword %q has no operand", kw)
			}
			operand = nodes[i+1]
			i += 2
		}
		if err := l.apply(c, kw, op, operand); err != nil {
			return err
		}
	}
	return nil
}

func isArrow(n wire.Node) bool {
	return n.Kind == wire.KindList && len(n.Children) == 2 &&
		n.Children[0].Kind == wire.KindAtom &&
		(n.Children[0].Text == "->" || n.Children[0].Text == "<-")
}

// linkageChild lowers a nested constraint reached through one of the
// four linkage keywords (or arrow shorthand): the child constraint is
// the value of the parent's linkage slot dir ("I am your l").
func (l *lowerer) linkageChild(parent *constraint.Constraint, dir primitive.Linkage, target wire.Node) error {
	child := l.a.New()
	child.Parent = parent.ID()
	child.HasLinkageToParent = true
	child.LinkageToParent = dir
	child.IAmLinkage = true
	parent.Children = append(parent.Children, child.ID())
	return l.fields(child, flattenBody([]wire.Node{target}))
}

func (l *lowerer) apply(c *constraint.Constraint, kw, op string, operand wire.Node) error {
	switch kw {
	case "type":
		c.TypeNames = append(c.TypeNames, operand.Text)
	case "name":
		c.Name = append(c.Name, constraint.Clause{Op: opFromText(op), Operand: operand.Text})
	case "value":
		c.Value = append(c.Value, constraint.Clause{Op: opFromText(op), Operand: operand.Text})
	case "datatype":
		c.DataType = operand.Text
	case "timestamp":
		c.Timestamp = append(c.Timestamp, constraint.Clause{Op: opFromText(op), Operand: operand.Text})
	case "guid":
		return l.applyGuid(&c.GUID, op, operand)
	case "left", "right", "typeguid", "scope":
		dir, _ := primitive.ParseLinkage(kw)
		if operand.Kind == wire.KindList {
			return l.linkageChild(c, dir, operand)
		}
		return l.applyGuid(&c.LinkageGUID[dir], op, operand)
	case "live":
		c.Live = tristateFromText(operand.Text)
	case "archival":
		c.Archival = tristateFromText(operand.Text)
	case "anchor":
		c.Anchor = tristateFromText(operand.Text)
	case "newest":
		c.Generation = constraint.GenNewest
	case "oldest":
		c.Generation = constraint.GenOldest
	case "key":
		return applyFieldMask(&c.KeyMask, operand)
	case "unique":
		return applyFieldMask(&c.UniqueMask, operand)
	case "sort":
		return l.applySort(c, operand)
	case "result":
		return l.applyResult(c, operand)
	case "pagesize":
		c.Pagesize = parseDecimal(operand.Text)
	case "countlimit":
		c.Countlimit = parseDecimal(operand.Text)
	case "start":
		c.Start = parseDecimal(operand.Text)
	case "cursor":
		l.cursor = operand.Text
	case "dateline":
		// Request-wide dateline snapshots are supplied by the caller at
		// Request.Start time, not parsed out of client text; this
		// keyword is accepted and ignored rather than rejected, so a
		// client round-tripping its own cursor text (which may embed a
		// `dateline=` clause from an earlier reply) doesn't trip syntax
		// errors.
	case "asof":
		l.asof = operand.Text
	case "comparator":
		c.Comparator = operand.Text
	case "value-comparator":
		c.ValueComparator = operand.Text
	default:
		return graphderr.Syntaxf("unrecognized keyword %q", kw)
	}
	return nil
}

func (l *lowerer) applyGuid(sets *[]constraint.GuidSet, op string, operand wire.Node) error {
	g, err := primitive.ParseGUID(operand.Text)
	if err != nil {
		return graphderr.Syntaxf("invalid guid %q: %v", operand.Text, err)
	}
	kind, ok := guidKindFromOp(op)
	if !ok {
		return graphderr.Syntaxf("operator %q is not valid on a guid clause", op)
	}
	*sets = append(*sets, constraint.GuidSet{Kind: kind, GUIDs: []primitive.GUID{g}})
	return nil
}

func guidKindFromOp(op string) (constraint.GuidSetKind, bool) {
	switch op {
	case "=":
		return constraint.GuidInclude, true
	case "!=":
		return constraint.GuidExclude, true
	case "~=":
		return constraint.GuidMatch, true
	default:
		return 0, false
	}
}

func applyFieldMask(mask *uint32, operand wire.Node) error {
	names := operand.Children
	if operand.Kind != wire.KindList {
		names = []wire.Node{operand}
	}
	for _, n := range names {
		bit, ok := keyFieldBit[n.Text]
		if !ok {
			return graphderr.Syntaxf("unrecognized field name %q in key/unique mask", n.Text)
		}
		*mask |= bit
	}
	return nil
}

// applySort lowers sort=(fieldname) to a SortPattern naming that
// field; promoteSortRoots (internal/constraint) turns this into a
// SortRoot during semantic completion.
func (l *lowerer) applySort(c *constraint.Constraint, operand wire.Node) error {
	fields := operand.Children
	if operand.Kind != wire.KindList || len(fields) == 0 {
		return graphderr.Syntaxf("sort= requires a field name in parentheses")
	}
	p, ok := resultFieldPattern(fields[0].Text)
	if !ok {
		return graphderr.Syntaxf("unrecognized sort field %q", fields[0].Text)
	}
	c.SortPattern = p
	return nil
}

// applyResult lowers result=((field ...)) to c's one-level result
// pattern: the single canonical form this server accepts is one
// tuple-list naming the fields each match produces, with no separate
// set-level wrapping (count=/cursor= patterns) - a constraint's reply
// is always the bare list of per-match tuples. See DESIGN.md for why
// the richer set-level form internal/pattern supports is not exposed
// through this grammar.
func (l *lowerer) applyResult(c *constraint.Constraint, operand wire.Node) error {
	if operand.Kind != wire.KindList || len(operand.Children) != 1 || operand.Children[0].Kind != wire.KindList {
		return graphderr.Syntaxf("result= requires exactly one tuple list, e.g. result=((guid value))")
	}
	tuple := operand.Children[0].Children
	children := make([]*pattern.Pattern, len(tuple))
	for i, f := range tuple {
		p, ok := resultFieldPattern(f.Text)
		if !ok {
			return graphderr.Syntaxf("unrecognized result field %q", f.Text)
		}
		children[i] = p
	}
	c.ResultFrame = pattern.NewFrame(nil, pattern.NewList(children...))
	return nil
}

func opFromText(op string) constraint.Op {
	switch op {
	case "=":
		return constraint.Eq
	case "!=":
		return constraint.Ne
	case "~=":
		return constraint.Glob
	case "<":
		return constraint.Lt
	case "<=":
		return constraint.Le
	case ">":
		return constraint.Gt
	case ">=":
		return constraint.Ge
	default:
		return constraint.Eq
	}
}

func tristateFromText(s string) constraint.Tristate {
	switch s {
	case "true":
		return constraint.True
	case "false":
		return constraint.False
	default:
		return constraint.DontCare
	}
}

func parseDecimal(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
