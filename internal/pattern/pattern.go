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

// Package pattern implements the result-shape tagged union a
// constraint compiles its output description into, and the frame
// pairing that result shape with the set/one evaluation split.
package pattern

import "github.com/graphd/graphd/internal/primitive"

// Kind tags which shape a Pattern node describes.
type Kind int

const (
	List Kind = iota
	Pick
	Variable
	Guid
	Timestamp
	Name
	Value
	Datatype
	Linkage
	Contents
	Count
	Cursor
	IteratorState
	Estimate
	EstimateCount
	Literal
)

func (k Kind) String() string {
	switch k {
	case List:
		return "list"
	case Pick:
		return "pick"
	case Variable:
		return "variable"
	case Guid:
		return "guid"
	case Timestamp:
		return "timestamp"
	case Name:
		return "name"
	case Value:
		return "value"
	case Datatype:
		return "datatype"
	case Linkage:
		return "linkage"
	case Contents:
		return "contents"
	case Count:
		return "count"
	case Cursor:
		return "cursor"
	case IteratorState:
		return "iterator"
	case Estimate:
		return "estimate"
	case EstimateCount:
		return "estimate-count"
	case Literal:
		return "literal"
	default:
		return "pattern(?)"
	}
}

// Pattern is a single node of the tagged union describing one value
// a result tuple should carry. Fields not relevant to Kind are zero.
type Pattern struct {
	Kind Kind

	// List / Pick hold child patterns.
	Children []*Pattern

	// Variable names a local-variable slot (set by an assignment
	// elsewhere in the tree) to read back.
	VariableSlot int

	// Linkage selects which of the four linkage slots Kind==Linkage
	// reads.
	LinkageSlot primitive.Linkage

	// Literal carries a constant value for Kind==Literal.
	Literal string

	// ContentsIndex selects which subconstraint's collected result
	// Kind==Contents reads, when this pattern sits inside a list whose
	// positions correspond 1:1 to child constraints.
	ContentsIndex int
}

// NewList builds a fixed-size list pattern.
func NewList(children ...*Pattern) *Pattern { return &Pattern{Kind: List, Children: children} }

// NewPick builds a pick pattern resolved against the active or-branch
// set at evaluation time.
func NewPick(children ...*Pattern) *Pattern { return &Pattern{Kind: Pick, Children: children} }

// NewVariable builds a pattern reading back local-variable slot n.
func NewVariable(slot int) *Pattern { return &Pattern{Kind: Variable, VariableSlot: slot} }

// NewLinkage builds a pattern reading primitive linkage l.
func NewLinkage(l primitive.Linkage) *Pattern { return &Pattern{Kind: Linkage, LinkageSlot: l} }

// NewLiteral builds a pattern yielding a fixed constant.
func NewLiteral(v string) *Pattern { return &Pattern{Kind: Literal, Literal: v} }

// NewContents builds a pattern reading subconstraint index's collected
// result sequence.
func NewContents(index int) *Pattern { return &Pattern{Kind: Contents, ContentsIndex: index} }

// Simple builds a pattern with no children or extra fields, for the
// kinds whose meaning is fixed by Kind alone (Guid, Timestamp, Name,
// Value, Datatype, Count, Cursor, IteratorState, Estimate,
// EstimateCount).
func Simple(k Kind) *Pattern { return &Pattern{Kind: k} }

// Frame pairs a set-level pattern (applies to the whole matched set:
// count, cursor, list of per-match tuples) with a one-level pattern
// (applied per matched primitive to build that primitive's tuple).
type Frame struct {
	SetLevel *Pattern
	OneLevel *Pattern
}

// NewFrame builds a Frame; either side may be nil if a constraint
// only cares about the other level (e.g. a write-only constraint that
// never yields a one-level tuple).
func NewFrame(setLevel, oneLevel *Pattern) *Frame {
	return &Frame{SetLevel: setLevel, OneLevel: oneLevel}
}
