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
	"context"
	"testing"

	"github.com/graphd/graphd/internal/primitive"
)

type fakeTypes struct {
	byName map[string]primitive.GUID
}

func (f fakeTypes) Resolve(_ context.Context, name string, allowCreate bool) (primitive.GUID, bool, error) {
	g, ok := f.byName[name]
	if !ok && allowCreate {
		g = primitive.NewGUID()
		f.byName[name] = g
		return g, true, nil
	}
	return g, ok, nil
}

func TestCompleteResolvesTypeNames(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.TypeNames = []string{"Person"}

	types := fakeTypes{byName: map[string]primitive.GUID{}}
	err := Complete(context.Background(), a, root.ID(), Options{Kind: Write, Types: types})
	if err != nil {
		t.Fatal(err)
	}
	if len(root.TypeGUIDs) != 1 {
		t.Fatalf("got %d type guids, want 1", len(root.TypeGUIDs))
	}
}

func TestCompleteUnresolvableTypeOnReadMarksFalse(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.TypeNames = []string{"Ghost"}

	types := fakeTypes{byName: map[string]primitive.GUID{}}
	err := Complete(context.Background(), a, root.ID(), Options{Kind: Read, Types: types})
	if err != nil {
		t.Fatal(err)
	}
	if !root.False {
		t.Fatal("unresolvable type on a read should mark the constraint false, not error")
	}
}

func TestCompleteKeyRequiresWrite(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.KeyMask = FieldName
	root.Name = []Clause{{Op: Eq, Operand: "alice"}}

	err := Complete(context.Background(), a, root.ID(), Options{Kind: Read})
	if err == nil {
		t.Fatal("expected key= on a read request to be rejected")
	}
}

func TestCompleteKeyMissingFieldRejected(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.KeyMask = FieldName // no Name clause present

	err := Complete(context.Background(), a, root.ID(), Options{Kind: Write})
	if err == nil {
		t.Fatal("expected key mask naming an absent field to be rejected")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.TypeNames = []string{"Person"}
	types := fakeTypes{byName: map[string]primitive.GUID{}}
	opts := Options{Kind: Write, Types: types}

	if err := Complete(context.Background(), a, root.ID(), opts); err != nil {
		t.Fatal(err)
	}
	first := append([]primitive.GUID{}, root.TypeGUIDs...)
	if err := Complete(context.Background(), a, root.ID(), opts); err != nil {
		t.Fatal(err)
	}
	if len(root.TypeGUIDs) != len(first) || root.TypeGUIDs[0] != first[0] {
		t.Fatalf("second completion changed type guids: %v -> %v", first, root.TypeGUIDs)
	}
}

func TestCompleteEmptyGuidSetMarksFalse(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.GUID = []GuidSet{{Kind: GuidInclude, GUIDs: nil}}

	if err := Complete(context.Background(), a, root.ID(), Options{Kind: Read}); err != nil {
		t.Fatal(err)
	}
	if !root.False {
		t.Fatal("empty explicit guid include set should mark the constraint false")
	}
}

func TestCompleteDefaultsFilled(t *testing.T) {
	a := NewArena()
	root := a.New()

	if err := Complete(context.Background(), a, root.ID(), Options{Kind: Read}); err != nil {
		t.Fatal(err)
	}
	if root.Pagesize != defaultPagesize {
		t.Fatalf("Pagesize = %d, want %d", root.Pagesize, defaultPagesize)
	}
	if root.Live != True {
		t.Fatalf("Live = %v, want True", root.Live)
	}
}

func TestCompleteAnchorRejectsConflict(t *testing.T) {
	a := NewArena()
	root := a.New()
	root.Anchor = True
	child := a.New()
	child.Anchor = False
	child.Parent = root.ID()
	root.Children = []ID{child.ID()}

	err := Complete(context.Background(), a, root.ID(), Options{Kind: Read})
	if err == nil {
		t.Fatal("expected anchored parent pointing to anchor=false child to be rejected")
	}
}

func TestOrBranchNumbering(t *testing.T) {
	a := NewArena()
	root := a.New()
	head := a.New()
	tail := a.New()
	root.OrBranches = []OrBranch{{Head: head.ID(), Tail: tail.ID(), Prototype: NoID}}

	if err := Complete(context.Background(), a, root.ID(), Options{Kind: Read}); err != nil {
		t.Fatal(err)
	}
	if head.OrIndex != 0 || tail.OrIndex != 0 {
		t.Fatalf("head/tail or-index = %d/%d, want 0/0", head.OrIndex, tail.OrIndex)
	}
}
