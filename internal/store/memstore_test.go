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

package store

import (
	"context"
	"testing"

	"github.com/graphd/graphd/internal/primitive"
)

func mustAlloc(t *testing.T, m *Memory, p *primitive.Primitive) primitive.ID {
	t.Helper()
	id, _, err := m.Alloc(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.AllocCommit(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestAllocNotVisibleBeforeCommit(t *testing.T) {
	m := NewMemory(1)
	p := &primitive.Primitive{DataType: "Person", Name: "alice"}
	id, _, err := m.Alloc(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.ByLocalID(context.Background(), id); ok {
		t.Fatal("primitive visible before AllocCommit")
	}
	if err := m.AllocCommit(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.ByLocalID(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("ByLocalID after commit = %v, %v, %v", got, ok, err)
	}
}

func TestByLinkageEnumeratesMatches(t *testing.T) {
	m := NewMemory(1)
	typeGUID := primitive.NewGUID()
	scope := primitive.NewGUID()
	p1 := &primitive.Primitive{DataType: "Person", Name: "a"}
	p1.Linkages[primitive.Scope] = scope
	p1.Linkages[primitive.TypeGuid] = typeGUID
	id1 := mustAlloc(t, m, p1)

	p2 := &primitive.Primitive{DataType: "Person", Name: "b"}
	p2.Linkages[primitive.Scope] = scope
	id2 := mustAlloc(t, m, p2)

	it, err := m.ByLinkage(context.Background(), primitive.Scope, scope)
	if err != nil {
		t.Fatal(err)
	}
	var got []primitive.ID
	for {
		id, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, id)
	}
	if len(got) != 2 || got[0] != id1 || got[1] != id2 {
		t.Fatalf("ByLinkage = %v, want [%d %d]", got, id1, id2)
	}
}

func TestNewestFollowsLineage(t *testing.T) {
	m := NewMemory(1)
	p1 := &primitive.Primitive{DataType: "Person", Name: "v1"}
	mustAlloc(t, m, p1)

	p2 := &primitive.Primitive{DataType: "Person", Name: "v2", Previous: p1.GUID}
	id2 := mustAlloc(t, m, p2)

	newest, ok, err := m.Newest(context.Background(), p1.GUID)
	if err != nil || !ok || newest != id2 {
		t.Fatalf("Newest(p1.GUID) = %d, %v, %v; want %d, true", newest, ok, err, id2)
	}
	newestFromV2, ok, err := m.Newest(context.Background(), p2.GUID)
	if err != nil || !ok || newestFromV2 != id2 {
		t.Fatalf("Newest(p2.GUID) = %d, %v, %v; want %d, true", newestFromV2, ok, err, id2)
	}
}

func TestByValueHashFindsMatches(t *testing.T) {
	m := NewMemory(1)
	p := &primitive.Primitive{DataType: "Person", Value: "42"}
	id := mustAlloc(t, m, p)

	it, err := m.ByValueHash(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := it.Next(context.Background())
	if err != nil || !ok || got != id {
		t.Fatalf("ByValueHash(42) = %d, %v, %v; want %d, true", got, ok, err, id)
	}
}
