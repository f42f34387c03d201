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

// Package heapq implements a generic binary min-heap over a plain
// slice, used by internal/sortbuf to keep a bounded top-K working set
// during sort buffering without allocating a new container type per
// sort key shape.
package heapq

// Heap is a min-heap over T ordered by Less. It owns no storage beyond
// the backing slice, so the zero value is usable once Less is set.
type Heap[T any] struct {
	data []T
	Less func(a, b T) bool
}

// New creates an empty Heap using less as the ordering predicate.
func New[T any](less func(a, b T) bool) *Heap[T] {
	return &Heap[T]{Less: less}
}

// Len reports the number of elements currently in the heap.
func (h *Heap[T]) Len() int { return len(h.data) }

// Peek returns the minimum element without removing it. It panics if
// the heap is empty; callers must check Len first.
func (h *Heap[T]) Peek() T { return h.data[0] }

// Push inserts v into the heap.
func (h *Heap[T]) Push(v T) {
	h.data = append(h.data, v)
	h.siftUp(len(h.data) - 1)
}

// Pop removes and returns the minimum element. It panics if the heap
// is empty.
func (h *Heap[T]) Pop() T {
	min := h.data[0]
	last := len(h.data) - 1
	h.data[0] = h.data[last]
	h.data = h.data[:last]
	if len(h.data) > 0 {
		h.siftDown(0)
	}
	return min
}

// Fix restores the heap invariant after the element at index has
// changed value in place, without a Pop/Push round trip.
func (h *Heap[T]) Fix(index int) {
	h.siftDown(index)
	h.siftUp(index)
}

// Slice exposes the backing storage in heap order (not sorted order);
// callers that need a sorted view should repeatedly Pop instead.
func (h *Heap[T]) Slice() []T { return h.data }

func (h *Heap[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.Less(h.data[i], h.data[parent]) {
			return
		}
		h.data[i], h.data[parent] = h.data[parent], h.data[i]
		i = parent
	}
}

func (h *Heap[T]) siftDown(i int) {
	n := len(h.data)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		smallest := left
		if right := left + 1; right < n && h.Less(h.data[right], h.data[left]) {
			smallest = right
		}
		if !h.Less(h.data[smallest], h.data[i]) {
			return
		}
		h.data[i], h.data[smallest] = h.data[smallest], h.data[i]
		i = smallest
	}
}
