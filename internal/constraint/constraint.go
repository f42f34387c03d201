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

// Package constraint implements the query tree the parser produces
// and the semantic-completion pass that normalizes it before
// evaluation: type resolution, dateline compilation, linkage and
// anchor inference, sort-root promotion, default filling, and the
// or-branch machinery.
//
// Constraints are arena-allocated and referenced by ID rather than by
// pointer: a constraint's parent, children, and or-branch siblings are
// all IDs into the same Arena. This sidesteps Go's lack of a cheap
// "weak back-pointer" - every pointer in the tree really is owned by
// the arena, and parent back-references are just another index, not
// a second owning reference that the garbage collector would need to
// reconcile with the forward owning edge from parent to child.
package constraint

import (
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
)

// ID identifies a Constraint within its Arena; the first constraint an
// Arena allocates gets ID 0. NoID marks "no such constraint" (e.g. a
// root's parent).
type ID int32

const NoID ID = -1

// Op is a comparison operator attached to a value/name/timestamp
// constraint clause.
type Op int

const (
	Eq Op = iota
	Ne
	Glob // ~=
	Lt
	Le
	Gt
	Ge
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "="
	case Ne:
		return "!="
	case Glob:
		return "~="
	case Lt:
		return "<"
	case Le:
		return "<="
	case Gt:
		return ">"
	case Ge:
		return ">="
	default:
		return "?"
	}
}

// Clause is one (op, operand) pair in a value/name/timestamp queue.
type Clause struct {
	Op      Op
	Operand string // for Timestamp clauses, the decimal microsecond value
}

// GuidSetKind selects how a GUID set constrains matches.
type GuidSetKind int

const (
	GuidInclude GuidSetKind = iota
	GuidExclude
	GuidMatch
)

// GuidSet is a `guid=` style constraint: include/exclude/match over
// an explicit GUID list.
type GuidSet struct {
	Kind  GuidSetKind
	GUIDs []primitive.GUID
}

// Generation selects newest/oldest-of-chain filtering.
type Generation int

const (
	GenAny Generation = iota
	GenNewest
	GenOldest
)

// Tristate models live/archival's true/false/dontcare domain.
type Tristate int

const (
	DontCare Tristate = iota
	True
	False
)

// Assignment binds a variable slot when this constraint reports a
// value, readable from Pattern.Variable nodes elsewhere in the tree.
type Assignment struct {
	Slot int
}

// OrBranch is one alternative in a constraint's or-list: a head
// constraint plus an optional tail fallback, and the prototype that
// owns the shared subtree storage both branches read through.
type OrBranch struct {
	Index     int // dense index assigned by OR-branch numbering
	Head      ID
	Tail      ID // NoID if this branch has no fallback
	Prototype ID // NoID if this branch owns its own storage
}

// SortRoot identifies where a sort key actually lives, possibly
// reached through a chain of variable assignments, and how it orders.
type SortRoot struct {
	Constraint ID
	Pattern    *pattern.Pattern
	Ordering   string // path-string naming an iterator ordering, e.g. "id" or "timestamp"
}

// Constraint is a single node of the query tree.
type Constraint struct {
	id ID

	// Intrinsics.
	TypeNames  []string // pre-resolution type name list
	TypeGUIDs  []primitive.GUID // post-resolution typeguid set
	Name       []Clause
	Value      []Clause
	GUID       []GuidSet
	LinkageGUID [4][]GuidSet // per-linkage (left/right/typeguid/scope) guid constraints
	DataType   string
	Archival   Tristate
	Live       Tristate
	Timestamp  []Clause
	Generation Generation
	DatelineLo int64
	DatelineHi int64
	HasDatelineLo bool
	HasDatelineHi bool
	CountMin, CountMax int64
	HasCountMin, HasCountMax bool
	Pagesize       int64
	Countlimit     int64
	ResultPagesize int64
	Start          int64
	Cursor         string
	Comparator     string
	ValueComparator string
	KeyMask        uint32 // bitmask: which intrinsic fields participate in a key cluster
	UniqueMask     uint32
	Anchor         Tristate

	// Structural.
	Parent        ID
	Children      []ID
	OrBranches    []OrBranch
	LinkageToParent primitive.Linkage
	HasLinkageToParent bool
	// IAmLinkage is true if this constraint is the parent's l (i.e.
	// "I am parent's l"); false means "parent is my l".
	IAmLinkage bool
	Assignments []Assignment
	SortPattern *pattern.Pattern
	SortRoot    *SortRoot

	// Derived at evaluation/completion time.
	False       bool // statically unsatisfiable; monotonic once set
	ResultFrame *pattern.Frame
	OrIndex     int // this constraint's or-branch index, if any; -1 otherwise
}

// ID returns the constraint's stable handle into its Arena.
func (c *Constraint) ID() ID { return c.id }

// Arena owns every Constraint in one request's tree.
type Arena struct {
	nodes []*Constraint
}

// NewArena creates an empty arena.
func NewArena() *Arena { return &Arena{} }

// New allocates a fresh constraint, assigns it a stable ID, and
// returns it. Callers link it into the tree (Parent/Children) after.
func (a *Arena) New() *Constraint {
	c := &Constraint{id: ID(len(a.nodes)), Parent: NoID, OrIndex: -1}
	a.nodes = append(a.nodes, c)
	return c
}

// Get resolves an ID back to its Constraint.
func (a *Arena) Get(id ID) *Constraint {
	if id == NoID {
		return nil
	}
	return a.nodes[id]
}

// Len reports how many constraints the arena owns.
func (a *Arena) Len() int { return len(a.nodes) }

// Walk visits every constraint reachable from root in pre-order,
// following Children (not OrBranches, whose head/tail are visited
// explicitly by callers that care about or-structure).
func (a *Arena) Walk(root ID, visit func(*Constraint) error) error {
	c := a.Get(root)
	if c == nil {
		return nil
	}
	if err := visit(c); err != nil {
		return err
	}
	for _, ch := range c.Children {
		if err := a.Walk(ch, visit); err != nil {
			return err
		}
	}
	return nil
}
