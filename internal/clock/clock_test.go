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

package clock

import (
	"testing"
	"time"
)

func TestTickCrossesBoundary(t *testing.T) {
	c := NewWithFunc(func() time.Time { return time.Unix(0, 0) })
	if c.Tick(1) {
		t.Fatal("a single tick should not cross the coarsening boundary")
	}
	if !c.Tick(tickInterval) {
		t.Fatal("ticking past tickInterval should cross the boundary")
	}
}

func TestPastUsesLastSample(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewWithFunc(func() time.Time { return now })
	if c.Past(time.Unix(50, 0)) != true {
		t.Fatal("sample at t=100 should be past a deadline at t=50")
	}
	if c.Past(time.Unix(200, 0)) != false {
		t.Fatal("sample at t=100 should not be past a deadline at t=200")
	}
}

func TestOvershoot(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewWithFunc(func() time.Time { return now })
	c.PastNow(time.Unix(0, 0))
	got := c.Overshoot(time.Unix(40, 0))
	if got != 60*time.Second {
		t.Fatalf("Overshoot = %v, want 60s", got)
	}
}
