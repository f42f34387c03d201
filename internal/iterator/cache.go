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
	"encoding/binary"
	"sort"

	"github.com/klauspost/compress/s2"
)

// growThreshold is where Cache switches from geometric to linear
// (64k-chunk) growth.
const growThreshold = 64 * 1024

const linearChunk = 64 * 1024

// compressThreshold is the id count above which Freeze compresses
// its payload with s2 (klauspost/compress), so that cursors built
// from large caches don't balloon the reply.
const compressThreshold = 4096

// Cache is a shared, ref-counted, ordered id buffer. It is not itself
// an Iterator; iterators (in this package, And) attach to one to
// memoize a prefix of their output across
// clones and across statistics sampling passes.
type Cache struct {
	ids     []ID
	costs   []int64 // parallel to ids; cumulative cost to have produced ids[i]
	eof     bool
	sorted  bool // true if ids is maintained in sorted order (the common case)
	refs    int32
	addOps  int64
	lookOps int64
}

// NewCache creates an empty, growing cache. sorted should be true
// unless the iterator it backs yields ids out of order (e.g. an
// unordered sampling pass).
func NewCache(sorted bool) *Cache {
	return &Cache{sorted: sorted}
}

// Ref increments the cache's reference count. Clones of an iterator
// that share a cache must each call Ref so the cache outlives every
// clone.
func (c *Cache) Ref() { c.refs++ }

// Unref decrements the reference count; callers that drop the last
// reference may discard the cache.
func (c *Cache) Unref() int32 {
	c.refs--
	return c.refs
}

// Len reports how many ids are currently buffered.
func (c *Cache) Len() int { return len(c.ids) }

// EOF reports whether the cache has recorded the end of its
// underlying iterator.
func (c *Cache) EOF() bool { return c.eof }

// SetEOF marks the cache as complete; no more ids will ever be added.
func (c *Cache) SetEOF() { c.eof = true }

// capFor implements the geometric-then-linear growth rule: double
// until growThreshold, then grow in fixed 64k chunks.
func capFor(n int) int {
	if n < growThreshold {
		c := 16
		for c < n {
			c *= 2
		}
		return c
	}
	return ((n / linearChunk) + 1) * linearChunk
}

// Add appends id (which must be >= the last added id if the cache is
// sorted) with its cumulative cost. Add is idempotent on the
// most-recently-added id: adding the same id again is a no-op.
func (c *Cache) Add(id ID, cumulativeCost int64) {
	c.addOps++
	if n := len(c.ids); n > 0 && c.ids[n-1] == id {
		return
	}
	if cap(c.ids) == len(c.ids) {
		grown := make([]ID, len(c.ids), capFor(len(c.ids)+1))
		copy(grown, c.ids)
		c.ids = grown
		growncost := make([]int64, len(c.costs), capFor(len(c.costs)+1))
		copy(growncost, c.costs)
		c.costs = growncost
	}
	c.ids = append(c.ids, id)
	c.costs = append(c.costs, cumulativeCost)
}

// Search returns the offset of id in the cache and id itself if
// present; otherwise it returns the offset of the first cached id
// greater than id (len(c.ids) if none) and that id (or 0 if none).
// It binary-searches when the cache is sorted and scans linearly
// otherwise.
func (c *Cache) Search(id ID) (off int, found ID, ok bool) {
	c.lookOps++
	if c.sorted {
		i := sort.Search(len(c.ids), func(i int) bool { return c.ids[i] >= id })
		if i < len(c.ids) && c.ids[i] == id {
			return i, c.ids[i], true
		}
		if i < len(c.ids) {
			return i, c.ids[i], false
		}
		return i, 0, false
	}
	for i, v := range c.ids {
		if v == id {
			return i, v, true
		}
	}
	return len(c.ids), 0, false
}

// Check reports whether id is present in the cached prefix. It does
// not tell the caller anything about ids beyond the cached prefix;
// callers must fall back to the backing iterator when Check returns
// false and the cache is not yet EOF.
func (c *Cache) Check(id ID) bool {
	_, _, ok := c.Search(id)
	return ok
}

// Index returns the id and cumulative cost at offset off.
func (c *Cache) Index(off int) (ID, int64) {
	return c.ids[off], c.costs[off]
}

// Equal reports whether c and o are equivalent: both must be eof and
// contain the same id sequence. While still growing, two distinct
// caches are never considered equivalent.
func (c *Cache) Equal(o *Cache) bool {
	if c == o {
		return true
	}
	if !c.eof || !o.eof {
		return false
	}
	if len(c.ids) != len(o.ids) {
		return false
	}
	for i := range c.ids {
		if c.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// Freeze serializes the cache's id sequence (and EOF bit) to bytes.
// Payloads above compressThreshold ids are s2-compressed to keep
// cursors built from large caches compact.
func (c *Cache) Freeze() []byte {
	raw := make([]byte, 9+len(c.ids)*8)
	if c.eof {
		raw[0] = 1
	}
	binary.LittleEndian.PutUint64(raw[1:9], uint64(len(c.ids)))
	for i, id := range c.ids {
		binary.LittleEndian.PutUint64(raw[9+i*8:9+i*8+8], uint64(id))
	}
	if len(c.ids) <= compressThreshold {
		return append([]byte{0}, raw...)
	}
	return append([]byte{1}, s2.Encode(nil, raw)...)
}

// ThawCache rebuilds a Cache from a Freeze payload.
func ThawCache(data []byte, sorted bool) (*Cache, error) {
	if len(data) == 0 {
		return NewCache(sorted), nil
	}
	tag, body := data[0], data[1:]
	if tag == 1 {
		var err error
		body, err = s2.Decode(nil, body)
		if err != nil {
			return nil, err
		}
	}
	if len(body) < 9 {
		return nil, errShortCache
	}
	c := NewCache(sorted)
	c.eof = body[0] == 1
	n := binary.LittleEndian.Uint64(body[1:9])
	body = body[9:]
	c.ids = make([]ID, 0, n)
	c.costs = make([]int64, 0, n)
	for i := uint64(0); i < n; i++ {
		off := i * 8
		id := ID(binary.LittleEndian.Uint64(body[off : off+8]))
		c.ids = append(c.ids, id)
		c.costs = append(c.costs, 0)
	}
	return c, nil
}

var errShortCache = &cacheError{"truncated cache freeze payload"}

type cacheError struct{ msg string }

func (e *cacheError) Error() string { return e.msg }

// Rethaw merges a stored cache into the current one, keeping
// whichever is larger. It is used when re-entering a suspended
// request whose in-memory cache may have been discarded but whose
// frozen cursor still carries a prefix.
func Rethaw(current, stored *Cache) *Cache {
	if stored == nil {
		return current
	}
	if current == nil {
		return stored
	}
	if stored.Len() > current.Len() {
		return stored
	}
	return current
}
