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

package pattern

import (
	"fmt"

	"github.com/graphd/graphd/internal/primitive"
)

// Value is one materialized result value. Exactly one of the typed
// fields is meaningful, selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	GUID primitive.GUID
	List []Value
}

// Locals is the per-constraint local-variable slot table fed by
// variable assignments during one-frame evaluation.
type Locals []Value

// Context carries everything Evaluate needs to resolve Variable and
// Contents nodes against the primitive currently being formatted.
type Context struct {
	Primitive *primitive.Primitive
	Locals    Locals
	Contents  [][]Value // Contents[i] is subconstraint i's collected tuple sequence
	// OrActive reports whether or-branch index is still viable.
	// Evaluate does not consult it; Pick chooses by ActiveBranch.
	OrActive func(branch int) bool
	// ActiveBranch, for Pick nodes, names which child index is live;
	// Pick children are assumed ordered by or-branch index.
	ActiveBranch int
}

// Evaluate materializes p against ctx.
func Evaluate(p *Pattern, ctx *Context) (Value, error) {
	switch p.Kind {
	case List:
		out := make([]Value, len(p.Children))
		for i, c := range p.Children {
			v, err := Evaluate(c, ctx)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		return Value{Kind: List, List: out}, nil
	case Pick:
		if ctx.ActiveBranch < 0 || ctx.ActiveBranch >= len(p.Children) {
			return Value{}, fmt.Errorf("pattern: pick has no active branch (have %d children, active %d)", len(p.Children), ctx.ActiveBranch)
		}
		return Evaluate(p.Children[ctx.ActiveBranch], ctx)
	case Variable:
		if p.VariableSlot < 0 || p.VariableSlot >= len(ctx.Locals) {
			return Value{}, fmt.Errorf("pattern: variable slot %d out of range (have %d)", p.VariableSlot, len(ctx.Locals))
		}
		return ctx.Locals[p.VariableSlot], nil
	case Guid:
		return Value{Kind: Guid, GUID: ctx.Primitive.GUID}, nil
	case Timestamp:
		return Value{Kind: Timestamp, Int: ctx.Primitive.Timestamp}, nil
	case Name:
		return Value{Kind: Name, Str: ctx.Primitive.Name}, nil
	case Value:
		return Value{Kind: Value, Str: ctx.Primitive.Value}, nil
	case Datatype:
		return Value{Kind: Datatype, Str: ctx.Primitive.DataType}, nil
	case Linkage:
		return Value{Kind: Linkage, GUID: ctx.Primitive.Linkage(p.LinkageSlot)}, nil
	case Contents:
		if p.ContentsIndex < 0 || p.ContentsIndex >= len(ctx.Contents) {
			return Value{}, fmt.Errorf("pattern: contents index %d out of range (have %d)", p.ContentsIndex, len(ctx.Contents))
		}
		return Value{Kind: Contents, List: ctx.Contents[p.ContentsIndex]}, nil
	case Literal:
		return Value{Kind: Literal, Str: p.Literal}, nil
	case Count, Cursor, IteratorState, Estimate, EstimateCount:
		// set-level-only kinds: filled in by the read engine's set
		// frame, which has the information (match count, cursor bytes,
		// iterator state) this package does not carry.
		return Value{}, fmt.Errorf("pattern: %s is a set-level pattern and cannot be evaluated per-primitive", p.Kind)
	default:
		return Value{}, fmt.Errorf("pattern: unknown kind %d", p.Kind)
	}
}
