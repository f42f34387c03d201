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

package dateline

import "testing"

func TestVisible(t *testing.T) {
	d := New(Entry{InstanceID: 1, MaxLocalID: 100}, Entry{InstanceID: 2, MaxLocalID: 50})
	if !d.Visible(1, 100) {
		t.Fatal("100 should be visible at max 100")
	}
	if d.Visible(1, 101) {
		t.Fatal("101 should not be visible at max 100")
	}
	if !d.Visible(3, 1_000_000) {
		t.Fatal("an instance absent from the dateline should have no floor")
	}
}

func TestMergeTakesPointwiseMax(t *testing.T) {
	a := New(Entry{InstanceID: 1, MaxLocalID: 10}, Entry{InstanceID: 2, MaxLocalID: 5})
	b := New(Entry{InstanceID: 1, MaxLocalID: 3}, Entry{InstanceID: 3, MaxLocalID: 7})
	m := a.Merge(b)
	if max, ok := m.MaxFor(1); !ok || max != 10 {
		t.Fatalf("MaxFor(1) = %d, %v; want 10, true", max, ok)
	}
	if max, ok := m.MaxFor(2); !ok || max != 5 {
		t.Fatalf("MaxFor(2) = %d, %v; want 5, true", max, ok)
	}
	if max, ok := m.MaxFor(3); !ok || max != 7 {
		t.Fatalf("MaxFor(3) = %d, %v; want 7, true", max, ok)
	}
}

func TestCapDropsUncappedInstances(t *testing.T) {
	d := New(Entry{InstanceID: 1, MaxLocalID: 100}, Entry{InstanceID: 2, MaxLocalID: 200})
	ceiling := New(Entry{InstanceID: 1, MaxLocalID: 40})
	capped := d.Cap(ceiling)
	if max, ok := capped.MaxFor(1); !ok || max != 40 {
		t.Fatalf("MaxFor(1) = %d, %v; want 40, true", max, ok)
	}
	if _, ok := capped.MaxFor(2); ok {
		t.Fatal("instance 2 has no ceiling entry and should be dropped")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New(Entry{InstanceID: 7, MaxLocalID: 123}, Entry{InstanceID: 9, MaxLocalID: 456})
	data := d.Encode()
	got, rest, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes: %d", len(rest))
	}
	if got.Compare(d) != 0 {
		t.Fatalf("round-tripped dateline %v != original %v", got, d)
	}
}

func TestNewDedupesKeepingMax(t *testing.T) {
	d := New(Entry{InstanceID: 1, MaxLocalID: 10}, Entry{InstanceID: 1, MaxLocalID: 20})
	if max, _ := d.MaxFor(1); max != 20 {
		t.Fatalf("MaxFor(1) = %d, want 20 (the larger duplicate entry)", max)
	}
}

type fakeSearcher struct {
	instances []uint64
	// ts -> local id, treated as if timestamps equal local ids for
	// simplicity
}

func (f fakeSearcher) Instances() []uint64 { return f.instances }
func (f fakeSearcher) LastAtOrBefore(instance uint64, ts int64) (int64, bool) {
	if ts < 0 {
		return 0, false
	}
	return ts, true
}
func (f fakeSearcher) FirstAtOrAfter(instance uint64, ts int64) (int64, bool) {
	return ts, true
}

func TestCompileBefore(t *testing.T) {
	s := fakeSearcher{instances: []uint64{1, 2}}
	d := CompileBefore(s, 42)
	for _, inst := range s.instances {
		if max, ok := d.MaxFor(inst); !ok || max != 42 {
			t.Fatalf("MaxFor(%d) = %d, %v; want 42, true", inst, max, ok)
		}
	}
}
