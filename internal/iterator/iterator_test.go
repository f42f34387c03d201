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

package iterator

import (
	"testing"
)

func drain(t *testing.T, it Iterator) []ID {
	t.Helper()
	var out []ID
	b := &Budget{Remaining: 1 << 30}
	for {
		id, sig, err := it.Next(b)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if sig == More {
			b.Remaining = 1 << 30
			continue
		}
		if sig == EOF {
			return out
		}
		out = append(out, id)
	}
}

// TestFixedSortedInvariant checks the sortedness contract: consecutive
// Next outputs are strictly increasing, Find(k) returns an id >= k or
// EOF, and every id the iterator yields satisfies Check = Ready.
func TestFixedSortedInvariant(t *testing.T) {
	ids := []ID{1, 3, 5, 7, 9}
	f := NewFixed(ids, true)
	got := drain(t, f)
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("not strictly increasing at %d: %v", i, got)
		}
	}
	b := &Budget{Remaining: 1 << 30}
	f.Reset()
	id, sig, err := f.Find(4, b)
	if err != nil || sig != Ready || id != 5 {
		t.Fatalf("Find(4) = %v, %v, %v; want 5, Ready", id, sig, err)
	}
	for _, want := range ids {
		sig, err := f.Check(want, b)
		if err != nil || sig != Ready {
			t.Fatalf("Check(%d) = %v, %v; want Ready", want, sig, err)
		}
	}
	sig, err = f.Check(4, b)
	if err != nil || sig != EOF {
		t.Fatalf("Check(4) = %v, %v; want EOF (not present)", sig, err)
	}
}

func TestFixedFreezeThaw(t *testing.T) {
	f := NewFixed([]ID{2, 4, 6, 8}, true)
	b := &Budget{Remaining: 1 << 30}
	f.Next(b)
	f.Next(b) // advance position to 2
	data, err := f.Freeze(FreezeAll)
	if err != nil {
		t.Fatal(err)
	}
	thawed, err := Thaw(FreezeAll, data)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, thawed)
	want := []ID{6, 8}
	if len(got) != len(want) {
		t.Fatalf("thawed sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("thawed sequence = %v, want %v", got, want)
		}
	}
}

func TestWithoutDifference(t *testing.T) {
	producer := NewFixed([]ID{1, 2, 3, 4, 5}, true)
	checker := NewFixed([]ID{2, 4}, true)
	w := NewWithout(producer, checker)
	got := drain(t, w)
	want := []ID{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAndIntersection(t *testing.T) {
	a := NewFixed([]ID{1, 2, 3, 4, 5, 6}, true)
	c := NewFixed([]ID{2, 4, 6, 8}, true)
	and := NewAnd([]Iterator{a, c})
	got := drain(t, and)
	want := []ID{2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestCacheIdempotent checks that Add is idempotent on the most-recent
// id, and that Search on the last-added id returns its true offset.
func TestCacheIdempotent(t *testing.T) {
	c := NewCache(true)
	c.Add(10, 1)
	c.Add(20, 2)
	c.Add(20, 2) // idempotent repeat
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	off, id, ok := c.Search(20)
	if !ok || off != 1 || id != 20 {
		t.Fatalf("Search(20) = %d, %d, %v; want 1, 20, true", off, id, ok)
	}
}

func TestCacheEqual(t *testing.T) {
	a := NewCache(true)
	b := NewCache(true)
	for _, id := range []ID{1, 2, 3} {
		a.Add(id, 0)
		b.Add(id, 0)
	}
	if a.Equal(b) {
		t.Fatal("non-eof caches should not compare equal")
	}
	a.SetEOF()
	b.SetEOF()
	if !a.Equal(b) {
		t.Fatal("eof caches with identical sequences should compare equal")
	}
	b.Add(4, 0)
	if a.Equal(b) {
		t.Fatal("caches with differing sequences should not compare equal")
	}
}

func TestCacheFreezeThaw(t *testing.T) {
	c := NewCache(true)
	for _, id := range []ID{5, 10, 15} {
		c.Add(id, 0)
	}
	c.SetEOF()
	data := c.Freeze()
	thawed, err := ThawCache(data, true)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Equal(thawed) {
		t.Fatalf("thawed cache not equal to original")
	}
}
