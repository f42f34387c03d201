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

// Package sortbuf implements the bounded sort buffer a set frame
// fills when a read carries an explicit sort root: matches accumulate
// up to a countlimit bound, and once the bound or end-of-set is
// reached the buffer is captured into ascending order and paged out
// pagesize items at a time, tracking an offset a cursor can resume
// from.
package sortbuf

import "github.com/graphd/graphd/internal/heapq"

// Buffer retains at most limit items in ascending order of less. Once
// full, a new item is kept only if it sorts before the current worst
// retained item, which is then discarded — the same overwrite-the-max
// discipline a bounded top-K collector uses to avoid holding every
// match in memory when only the first countlimit, in sort order,
// will ever be paged out. limit <= 0 means unbounded: every Add is
// kept.
type Buffer[T any] struct {
	limit int
	less  func(a, b T) bool
	worst *heapq.Heap[T] // max-heap under less; root is the current worst kept item
}

// New creates a Buffer retaining at most limit items (limit <= 0 for
// unbounded) ordered ascending by less.
func New[T any](limit int, less func(a, b T) bool) *Buffer[T] {
	greater := func(a, b T) bool { return less(b, a) }
	return &Buffer[T]{limit: limit, less: less, worst: heapq.New(greater)}
}

// Len reports how many items are currently retained.
func (b *Buffer[T]) Len() int { return b.worst.Len() }

// Add offers v to the buffer. It reports whether v was retained: always
// true while under the limit (or unbounded), true if v displaced a
// worse item once at the limit, false if v was worse than everything
// already retained and the buffer is full.
func (b *Buffer[T]) Add(v T) bool {
	if b.limit <= 0 || b.worst.Len() < b.limit {
		b.worst.Push(v)
		return true
	}
	if b.less(v, b.worst.Peek()) {
		b.worst.Pop()
		b.worst.Push(v)
		return true
	}
	return false
}

// Merge folds every item retained by o into b, as if each had been
// Added individually. o is left unusable afterward.
func (b *Buffer[T]) Merge(o *Buffer[T]) {
	for o.Len() > 0 {
		b.Add(o.worst.Pop())
	}
}

// Capture drains the buffer into a slice in ascending (least-first)
// order and resets it to empty.
func (b *Buffer[T]) Capture() []T {
	n := b.worst.Len()
	out := make([]T, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = b.worst.Pop()
	}
	return out
}

// Paginator walks a captured, sorted slice pagesize items at a time,
// tracking the offset a cursor needs to resume an interrupted read at
// the same position.
type Paginator[T any] struct {
	items  []T
	offset int
}

// NewPaginator wraps a slice already in final sort order, starting at
// offset (0 for a fresh read, or a value recovered from a cursor).
func NewPaginator[T any](items []T, offset int) *Paginator[T] {
	if offset < 0 {
		offset = 0
	}
	if offset > len(items) {
		offset = len(items)
	}
	return &Paginator[T]{items: items, offset: offset}
}

// Next returns up to pagesize items starting at the current offset,
// advances the offset past them, and reports whether any items remain
// after this page.
func (p *Paginator[T]) Next(pagesize int) (page []T, more bool) {
	if pagesize <= 0 || p.offset >= len(p.items) {
		return nil, p.offset < len(p.items)
	}
	end := p.offset + pagesize
	if end > len(p.items) {
		end = len(p.items)
	}
	page = p.items[p.offset:end]
	p.offset = end
	return page, p.offset < len(p.items)
}

// Offset reports the current resume position, to be embedded in a
// cursor.
func (p *Paginator[T]) Offset() int { return p.offset }
