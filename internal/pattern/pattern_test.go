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
	"testing"

	"github.com/graphd/graphd/internal/primitive"
)

func TestEvaluateList(t *testing.T) {
	p := &primitive.Primitive{Name: "alice", Value: "42"}
	pat := NewList(Simple(Name), Simple(Value))
	v, err := Evaluate(pat, &Context{Primitive: p})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.List) != 2 || v.List[0].Str != "alice" || v.List[1].Str != "42" {
		t.Fatalf("got %+v", v)
	}
}

func TestEvaluateVariable(t *testing.T) {
	ctx := &Context{Locals: Locals{{Kind: Literal, Str: "bound"}}}
	v, err := Evaluate(NewVariable(0), ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "bound" {
		t.Fatalf("got %+v, want bound", v)
	}
}

func TestEvaluateVariableOutOfRange(t *testing.T) {
	ctx := &Context{Locals: Locals{}}
	if _, err := Evaluate(NewVariable(5), ctx); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestEvaluatePickUsesActiveBranch(t *testing.T) {
	pat := NewPick(NewLiteral("a"), NewLiteral("b"))
	ctx := &Context{ActiveBranch: 1}
	v, err := Evaluate(pat, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Str != "b" {
		t.Fatalf("got %q, want b", v.Str)
	}
}

func TestEvaluateSetLevelKindRejected(t *testing.T) {
	if _, err := Evaluate(Simple(Count), &Context{}); err == nil {
		t.Fatal("expected error evaluating a set-level pattern per-primitive")
	}
}

func TestEvaluateLinkage(t *testing.T) {
	scope := primitive.NewGUID()
	p := &primitive.Primitive{}
	p.Linkages[primitive.Scope] = scope
	v, err := Evaluate(NewLinkage(primitive.Scope), &Context{Primitive: p})
	if err != nil {
		t.Fatal(err)
	}
	if v.GUID != scope {
		t.Fatalf("got %v, want %v", v.GUID, scope)
	}
}
