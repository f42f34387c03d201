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

// Package dateline implements the (instance_id -> max_local_id)
// snapshot map used for asof time travel and cursor consistency: two
// requests observing the same dateline see the same append-history
// prefix of the store, even as writes continue to land behind them.
package dateline

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// Dateline is an immutable snapshot point: for every writer instance
// it has observed, the highest local id that instance had assigned as
// of the moment the dateline was taken. A zero Dateline (no entries)
// means "no floor": every id is visible.
type Dateline struct {
	// entries is kept sorted by InstanceID so Compare and the wire
	// encoding are deterministic regardless of insertion order.
	entries []Entry
}

// Entry pairs a writer instance with the highest local id it had
// produced when the dateline was captured.
type Entry struct {
	InstanceID uint64
	MaxLocalID int64
}

// New builds a Dateline from a set of entries, deduplicating by
// instance id (keeping the larger MaxLocalID) and sorting for deterministic
// comparison and encoding.
func New(entries ...Entry) Dateline {
	byInstance := make(map[uint64]int64, len(entries))
	for _, e := range entries {
		if cur, ok := byInstance[e.InstanceID]; !ok || e.MaxLocalID > cur {
			byInstance[e.InstanceID] = e.MaxLocalID
		}
	}
	out := make([]Entry, 0, len(byInstance))
	for id, max := range byInstance {
		out = append(out, Entry{InstanceID: id, MaxLocalID: max})
	}
	slices.SortFunc(out, func(a, b Entry) bool { return a.InstanceID < b.InstanceID })
	return Dateline{entries: out}
}

// Empty reports whether the dateline has no floor (every id visible).
func (d Dateline) Empty() bool { return len(d.entries) == 0 }

// MaxFor returns the highest local id visible for instance, and
// whether that instance has any entry in the dateline at all. An
// instance absent from the dateline is treated as having produced
// nothing as of the snapshot.
func (d Dateline) MaxFor(instance uint64) (int64, bool) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].InstanceID >= instance })
	if i < len(d.entries) && d.entries[i].InstanceID == instance {
		return d.entries[i].MaxLocalID, true
	}
	return 0, false
}

// Visible reports whether a primitive produced by instance with the
// given local id is visible under this dateline: true if the
// dateline has no floor for that instance, or if localID is at or
// below the recorded maximum.
func (d Dateline) Visible(instance uint64, localID int64) bool {
	max, ok := d.MaxFor(instance)
	if !ok {
		return true
	}
	return localID <= max
}

// Merge combines d with o, taking the pointwise maximum of every
// instance's bound. This is how a request's running dateline absorbs
// the dateline attached to a write it just issued.
func (d Dateline) Merge(o Dateline) Dateline {
	all := append(append([]Entry{}, d.entries...), o.entries...)
	return New(all...)
}

// Cap bounds every entry of d to at most the corresponding entry in
// ceiling; instances present in d but absent from ceiling are
// dropped, since asof caps the snapshot to no later than ceiling.
func (d Dateline) Cap(ceiling Dateline) Dateline {
	var out []Entry
	for _, e := range d.entries {
		if max, ok := ceiling.MaxFor(e.InstanceID); ok {
			if e.MaxLocalID > max {
				e.MaxLocalID = max
			}
			out = append(out, e)
		}
	}
	return New(out...)
}

// Compare reports -1, 0, or 1 for a strict total order over
// datelines, used only to give cursors and logs a canonical string;
// it carries no causal meaning (datelines are a partial order under
// Visible/Merge).
func (d Dateline) Compare(o Dateline) int {
	if len(d.entries) != len(o.entries) {
		if len(d.entries) < len(o.entries) {
			return -1
		}
		return 1
	}
	for i := range d.entries {
		if d.entries[i].InstanceID != o.entries[i].InstanceID {
			if d.entries[i].InstanceID < o.entries[i].InstanceID {
				return -1
			}
			return 1
		}
		if d.entries[i].MaxLocalID != o.entries[i].MaxLocalID {
			if d.entries[i].MaxLocalID < o.entries[i].MaxLocalID {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Encode writes a compact binary form: a count followed by
// (instance_id, max_local_id) pairs in sorted order, suitable for
// embedding in a cursor payload.
func (d Dateline) Encode() []byte {
	out := make([]byte, 8, 8+len(d.entries)*16)
	binary.LittleEndian.PutUint64(out, uint64(len(d.entries)))
	for _, e := range d.entries {
		out = binary.LittleEndian.AppendUint64(out, e.InstanceID)
		out = binary.LittleEndian.AppendUint64(out, uint64(e.MaxLocalID))
	}
	return out
}

// Decode parses the form Encode produces.
func Decode(data []byte) (Dateline, []byte, error) {
	if len(data) < 8 {
		return Dateline{}, nil, fmt.Errorf("dateline: truncated header")
	}
	n := binary.LittleEndian.Uint64(data[:8])
	data = data[8:]
	entries := make([]Entry, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(data) < 16 {
			return Dateline{}, nil, fmt.Errorf("dateline: truncated entry %d", i)
		}
		entries = append(entries, Entry{
			InstanceID: binary.LittleEndian.Uint64(data[:8]),
			MaxLocalID: int64(binary.LittleEndian.Uint64(data[8:16])),
		})
		data = data[16:]
	}
	return New(entries...), data, nil
}

// TimestampSearcher resolves a timestamp to the bounding local id of
// a single writer instance's append history; the constraint
// semantic-completion pass uses it to turn timestamp< / timestamp>
// bounds into dateline maxima/minima by binary search, one instance
// at a time.
type TimestampSearcher interface {
	// LastAtOrBefore returns the highest local id whose primitive
	// timestamp is <= ts, and false if no such id exists.
	LastAtOrBefore(instance uint64, ts int64) (int64, bool)
	// FirstAtOrAfter returns the lowest local id whose primitive
	// timestamp is >= ts, and false if no such id exists.
	FirstAtOrAfter(instance uint64, ts int64) (int64, bool)
	// Instances enumerates every writer instance the store knows
	// about, needed to build a dateline that spans all of them.
	Instances() []uint64
}

// CompileBefore builds the dateline whose maxima are the last local
// id at or before ts for every known instance, used to compile a
// timestamp< bound (and the global asof cap).
func CompileBefore(s TimestampSearcher, ts int64) Dateline {
	var entries []Entry
	for _, inst := range s.Instances() {
		if max, ok := s.LastAtOrBefore(inst, ts); ok {
			entries = append(entries, Entry{InstanceID: inst, MaxLocalID: max})
		}
	}
	return New(entries...)
}

// CompileAfter builds the per-instance minima (the first local id at
// or after ts) used to compile a timestamp> bound. Unlike a dateline
// ceiling, these are lower bounds, so the result is returned as plain
// entries rather than a Dateline (whose semantics are always "at
// most").
func CompileAfter(s TimestampSearcher, ts int64) []Entry {
	var entries []Entry
	for _, inst := range s.Instances() {
		if min, ok := s.FirstAtOrAfter(inst, ts); ok {
			entries = append(entries, Entry{InstanceID: inst, MaxLocalID: min})
		}
	}
	return entries
}

// String renders a compact diagnostic form, e.g. "{1:42,2:17}".
func (d Dateline) String() string {
	s := "{"
	for i, e := range d.entries {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d:%d", e.InstanceID, e.MaxLocalID)
	}
	return s + "}"
}
