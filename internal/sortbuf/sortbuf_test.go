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

package sortbuf

import (
	"reflect"
	"testing"
)

func intLess(a, b int) bool { return a < b }

func TestUnboundedCaptureSorted(t *testing.T) {
	b := New(0, intLess)
	for _, v := range []int{5, 1, 4, 2, 3} {
		if !b.Add(v) {
			t.Fatalf("Add(%d) should always succeed when unbounded", v)
		}
	}
	got := b.Capture()
	want := []int{1, 2, 3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestBoundedDropsWorstWhenFull(t *testing.T) {
	b := New(3, intLess)
	for _, v := range []int{10, 20, 30} {
		b.Add(v)
	}
	// 5 is better than the current worst (30), so it displaces it.
	if !b.Add(5) {
		t.Fatal("Add(5) should displace the worst retained item")
	}
	// 100 is worse than everything retained, so it is rejected.
	if b.Add(100) {
		t.Fatal("Add(100) should be rejected once the buffer is full of better items")
	}
	got := b.Capture()
	want := []int{5, 10, 20}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestMerge(t *testing.T) {
	a := New(2, intLess)
	a.Add(1)
	a.Add(9)
	o := New(2, intLess)
	o.Add(2)
	o.Add(3)
	a.Merge(o)
	got := a.Capture()
	want := []int{1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPaginatorWalksPages(t *testing.T) {
	p := NewPaginator([]int{1, 2, 3, 4, 5}, 0)
	page, more := p.Next(2)
	if !reflect.DeepEqual(page, []int{1, 2}) || !more {
		t.Fatalf("page=%v more=%v", page, more)
	}
	page, more = p.Next(2)
	if !reflect.DeepEqual(page, []int{3, 4}) || !more {
		t.Fatalf("page=%v more=%v", page, more)
	}
	page, more = p.Next(2)
	if !reflect.DeepEqual(page, []int{5}) || more {
		t.Fatalf("page=%v more=%v", page, more)
	}
}

func TestPaginatorResumeFromOffset(t *testing.T) {
	p := NewPaginator([]int{1, 2, 3, 4, 5}, 3)
	page, more := p.Next(10)
	if !reflect.DeepEqual(page, []int{4, 5}) || more {
		t.Fatalf("page=%v more=%v", page, more)
	}
	if p.Offset() != 5 {
		t.Fatalf("Offset() = %d, want 5", p.Offset())
	}
}
