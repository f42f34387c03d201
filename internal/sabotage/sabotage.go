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

// Package sabotage implements an injected-fault counter that a call
// site can consult so tests can force suspend/resume or error paths
// to fire deterministically instead of relying on real scheduling
// pressure. No other package in this module consults it.
package sabotage

import "sync/atomic"

// Point names one instrumented call site.
type Point string

const (
	SuspendAll   Point = "suspend_all"
	UnsuspendAll Point = "unsuspend_all"
	StoreRead    Point = "store_read"
	AllocCommit  Point = "alloc_commit"
)

// Counter is a per-Point trigger: it fires (returns true) on every
// Nth call (the Nth, the 2Nth, and so on) and stays armed. A zero
// Counter never fires.
type Counter struct {
	every int64
	hits  int64
}

// Every returns a Counter that fires on its nth call, then on every
// subsequent nth call (n must be >= 1). n == 0 never fires.
func Every(n int64) *Counter { return &Counter{every: n} }

// Hit records one call to the instrumented site and reports whether
// this call should inject the fault.
func (c *Counter) Hit() bool {
	if c == nil || c.every <= 0 {
		return false
	}
	n := atomic.AddInt64(&c.hits, 1)
	return n%c.every == 0
}

// Harness maps instrumented points to their counters; nil entries
// never fire. A Harness with no registered points is a no-op, so
// production code can thread a *Harness through unconditionally and
// only tests populate it.
type Harness struct {
	counters map[Point]*Counter
}

// New creates an empty harness; no point fires until Arm is called.
func New() *Harness { return &Harness{counters: map[Point]*Counter{}} }

// Arm registers a counter for point, replacing any prior one.
func (h *Harness) Arm(point Point, every int64) {
	if h == nil {
		return
	}
	h.counters[point] = Every(every)
}

// Disarm removes point's counter so it never fires again.
func (h *Harness) Disarm(point Point) {
	if h == nil {
		return
	}
	delete(h.counters, point)
}

// Fire reports whether point should inject its fault on this call,
// and is nil-receiver safe so unarmed production code can call it
// freely.
func (h *Harness) Fire(point Point) bool {
	if h == nil {
		return false
	}
	return h.counters[point].Hit()
}
