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

package write

import (
	"context"
	"testing"
	"time"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/exec"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
)

func newWriteRequest() *session.Request {
	return session.New(context.Background(), 0, time.Minute, exec.New(nil))
}

func countNamed(t *testing.T, st *store.Memory, name string) int {
	t.Helper()
	it, err := st.ByNameHash(context.Background(), name)
	if err != nil {
		t.Fatalf("ByNameHash: %v", err)
	}
	n := 0
	for {
		id, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		if !ok {
			break
		}
		p, ok, err := st.ByLocalID(context.Background(), id)
		if err != nil {
			t.Fatalf("ByLocalID: %v", err)
		}
		if ok && p.Name == name {
			n++
		}
	}
	return n
}

func TestWriteCreatesFreshPrimitive(t *testing.T) {
	st := store.NewMemory(1)
	bs := NewBootstrap(st)

	a := constraint.NewArena()
	c := a.New()
	c.Name = []constraint.Clause{{Op: constraint.Eq, Operand: "alice"}}
	c.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))

	req := newWriteRequest()
	v, err := Write(context.Background(), st, req, bs, a, c.ID())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(v.List) != 1 || v.List[0].GUID.IsNull() {
		t.Fatalf("expected a single non-null guid, got %+v", v)
	}
	p, ok, err := st.ByGUID(context.Background(), v.List[0].GUID)
	if err != nil || !ok {
		t.Fatalf("written primitive not found: %v", err)
	}
	if !p.TxStart() {
		t.Fatal("expected the first write of the request to carry tx_start")
	}
}

func TestKeyClusterReusesExistingPrimitive(t *testing.T) {
	st := store.NewMemory(1)
	bs := NewBootstrap(st)

	build := func() (*constraint.Arena, constraint.ID) {
		a := constraint.NewArena()
		c := a.New()
		c.Name = []constraint.Clause{{Op: constraint.Eq, Operand: "dave"}}
		c.KeyMask = constraint.FieldName
		c.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))
		return a, c.ID()
	}

	req1 := newWriteRequest()
	a1, root1 := build()
	v1, err := Write(context.Background(), st, req1, bs, a1, root1)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	req2 := newWriteRequest()
	a2, root2 := build()
	v2, err := Write(context.Background(), st, req2, bs, a2, root2)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if v1.List[0].GUID != v2.List[0].GUID {
		t.Fatalf("second write should reuse the first's guid: %v vs %v", v1.List[0].GUID, v2.List[0].GUID)
	}
	if n := countNamed(t, st, "dave"); n != 1 {
		t.Fatalf("expected exactly one stored primitive named dave, got %d", n)
	}
}

func TestUniqueClusterRejectsDuplicate(t *testing.T) {
	st := store.NewMemory(1)
	bs := NewBootstrap(st)

	build := func() (*constraint.Arena, constraint.ID) {
		a := constraint.NewArena()
		c := a.New()
		c.Name = []constraint.Clause{{Op: constraint.Eq, Operand: "erin"}}
		c.UniqueMask = constraint.FieldName
		c.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))
		return a, c.ID()
	}

	req1 := newWriteRequest()
	a1, root1 := build()
	if _, err := Write(context.Background(), st, req1, bs, a1, root1); err != nil {
		t.Fatalf("first write: %v", err)
	}

	req2 := newWriteRequest()
	a2, root2 := build()
	_, err := Write(context.Background(), st, req2, bs, a2, root2)
	gerr, ok := err.(*graphderr.Error)
	if !ok || gerr.Code != graphderr.UniqueExists {
		t.Fatalf("expected UNIQUE_EXISTS, got %v", err)
	}
}

func TestTypeBootstrapReusesTypeGuid(t *testing.T) {
	st := store.NewMemory(1)
	bs := NewBootstrap(st)

	build := func(name string) (*constraint.Arena, constraint.ID) {
		a := constraint.NewArena()
		c := a.New()
		c.Name = []constraint.Clause{{Op: constraint.Eq, Operand: name}}
		c.TypeNames = []string{"Person"}
		c.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))
		return a, c.ID()
	}

	req1 := newWriteRequest()
	a1, root1 := build("frank")
	v1, err := Write(context.Background(), st, req1, bs, a1, root1)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	req2 := newWriteRequest()
	a2, root2 := build("gina")
	v2, err := Write(context.Background(), st, req2, bs, a2, root2)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	p1, _, _ := st.ByGUID(context.Background(), v1.List[0].GUID)
	p2, _, _ := st.ByGUID(context.Background(), v2.List[0].GUID)
	if v1.List[0].GUID == v2.List[0].GUID {
		t.Fatal("frank and gina should not resolve to the same primitive")
	}
	typeguid1 := p1.Linkage(primitive.TypeGuid)
	typeguid2 := p2.Linkage(primitive.TypeGuid)
	if typeguid1.IsNull() || typeguid1 != typeguid2 {
		t.Fatalf("expected both primitives to share one Person typeguid, got %v vs %v", typeguid1, typeguid2)
	}
}

func TestVersioningExcludesPredecessor(t *testing.T) {
	st := store.NewMemory(1)
	bs := NewBootstrap(st)

	a1 := constraint.NewArena()
	c1 := a1.New()
	c1.Name = []constraint.Clause{{Op: constraint.Eq, Operand: "henry"}}
	c1.KeyMask = constraint.FieldName
	c1.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))
	req1 := newWriteRequest()
	v1, err := Write(context.Background(), st, req1, bs, a1, c1.ID())
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	a2 := constraint.NewArena()
	c2 := a2.New()
	c2.Name = []constraint.Clause{{Op: constraint.Eq, Operand: "henry-v2"}}
	c2.KeyMask = constraint.FieldName
	c2.GUID = []constraint.GuidSet{{Kind: constraint.GuidInclude, GUIDs: []primitive.GUID{v1.List[0].GUID}}}
	c2.ResultFrame = pattern.NewFrame(nil, pattern.Simple(pattern.Guid))
	req2 := newWriteRequest()
	v2, err := Write(context.Background(), st, req2, bs, a2, c2.ID())
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if v2.List[0].GUID == v1.List[0].GUID {
		t.Fatal("a versioning write should produce a new guid, not reuse the predecessor")
	}
}
