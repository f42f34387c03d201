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
)

// Fixed owns a sorted (ascending unless forward=false) id array.
// Next is array-indexed and Find is binary search: cheap and exact.
type Fixed struct {
	ids     []ID
	pos     int
	forward bool
	summary Summary
}

// NewFixed builds a Fixed iterator over ids, which must already be
// sorted ascending (or descending if forward is false).
func NewFixed(ids []ID, forward bool) *Fixed {
	return &Fixed{ids: ids, forward: forward}
}

func (f *Fixed) less(a, b ID) bool {
	if f.forward {
		return a < b
	}
	return a > b
}

func (f *Fixed) Next(b *Budget) (ID, Signal, error) {
	if b.Spend(1) {
		return 0, More, nil
	}
	if f.pos >= len(f.ids) {
		return 0, EOF, nil
	}
	id := f.ids[f.pos]
	f.pos++
	return id, Ready, nil
}

func (f *Fixed) Find(id ID, b *Budget) (ID, Signal, error) {
	cost := int64(1)
	for n := len(f.ids); n > 1; n >>= 1 {
		cost++
	}
	if b.Spend(cost) {
		return 0, More, nil
	}
	i := sort.Search(len(f.ids), func(i int) bool {
		if f.forward {
			return f.ids[i] >= id
		}
		return f.ids[i] <= id
	})
	f.pos = i
	if i >= len(f.ids) {
		return 0, EOF, nil
	}
	return f.ids[i], Ready, nil
}

func (f *Fixed) Check(id ID, b *Budget) (Signal, error) {
	if b.Spend(1) {
		return More, nil
	}
	i := sort.Search(len(f.ids), func(i int) bool {
		if f.forward {
			return f.ids[i] >= id
		}
		return f.ids[i] <= id
	})
	if i < len(f.ids) && f.ids[i] == id {
		return Ready, nil
	}
	return EOF, nil
}

func (f *Fixed) Statistics(b *Budget) (Cost, Signal, error) {
	return Cost{CheckCost: 1, FindCost: 2, NextCost: 1, N: int64(len(f.ids))}, Ready, nil
}

func (f *Fixed) Clone() Iterator {
	return &Fixed{ids: f.ids, forward: f.forward, summary: f.summary}
}

func (f *Fixed) Reset() { f.pos = 0 }

func (f *Fixed) PrimitiveSummary() Summary { return f.summary }

// WithSummary attaches a primitive summary (used by the planner when
// it knows every id in this fixed set shares a given linkage/GUID,
// e.g. the result of a VIP fallback sample).
func (f *Fixed) WithSummary(s Summary) *Fixed {
	f.summary = s
	return f
}

func (f *Fixed) Beyond(key ID) bool {
	if f.pos >= len(f.ids) {
		return true
	}
	if f.forward {
		return f.ids[f.pos] > key
	}
	return f.ids[f.pos] < key
}

func (f *Fixed) RangeEstimate() RangeEstimate {
	if len(f.ids) == 0 {
		return RangeEstimate{N: 0}
	}
	lo, hi := f.ids[0], f.ids[len(f.ids)-1]
	if !f.forward {
		lo, hi = hi, lo
	}
	return RangeEstimate{Low: lo, High: hi, N: int64(len(f.ids))}
}

func (f *Fixed) Sorted() bool  { return true }
func (f *Fixed) Forward() bool { return f.forward }

const tagFixed = 1

func (f *Fixed) Freeze(flags FreezeFlags) ([]byte, error) {
	out := []byte{tagFixed}
	if f.forward {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	if flags&FreezePosition != 0 {
		out = binary.LittleEndian.AppendUint64(out, uint64(f.pos))
	} else {
		out = binary.LittleEndian.AppendUint64(out, 0)
	}
	if flags&FreezeSet != 0 {
		out = binary.LittleEndian.AppendUint64(out, uint64(len(f.ids)))
		for _, id := range f.ids {
			out = binary.LittleEndian.AppendUint64(out, uint64(id))
		}
	}
	return out, nil
}

func thawFixed(flags FreezeFlags, body []byte) (Iterator, error) {
	if len(body) < 9 {
		return nil, errShortCache
	}
	forward := body[0] == 1
	pos := int(binary.LittleEndian.Uint64(body[1:9]))
	body = body[9:]
	f := &Fixed{forward: forward}
	if flags&FreezeSet != 0 && len(body) >= 8 {
		n := binary.LittleEndian.Uint64(body[:8])
		body = body[8:]
		f.ids = make([]ID, 0, n)
		for i := uint64(0); i < n; i++ {
			off := i * 8
			f.ids = append(f.ids, ID(binary.LittleEndian.Uint64(body[off:off+8])))
		}
	}
	if flags&FreezePosition != 0 {
		f.pos = pos
	}
	return f, nil
}

func init() {
	registerThawer(tagFixed, thawFixed)
}
