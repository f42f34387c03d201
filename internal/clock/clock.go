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

// Package clock implements a tick-coarsened deadline clock: a cheap
// monotonically-increasing tick counter that the scheduler bumps on
// every unit of work, checked against a real wall-clock read only
// every tickInterval ticks, since a time.Now() call on every iterator
// step would dominate the cost of cheap operations like a Fixed
// iterator's Next.
package clock

import "time"

// tickInterval mirrors the coarsening factor of a TSC-based deadline
// check: roughly one wall-clock read per 5,000,000 logical ticks.
const tickInterval = 5_000_000

// Clock is a coarsened deadline timer. It is not safe for concurrent
// use; each request's scheduler owns one.
type Clock struct {
	ticks    int64
	lastWall time.Time
	now      func() time.Time
}

// New creates a Clock using the real wall clock.
func New() *Clock {
	return &Clock{now: time.Now, lastWall: time.Now()}
}

// NewWithFunc creates a Clock whose wall-clock reads come from now,
// for deterministic tests.
func NewWithFunc(now func() time.Time) *Clock {
	return &Clock{now: now, lastWall: now()}
}

// Tick advances the logical tick counter by n and reports whether a
// wall-clock boundary was crossed (i.e. whether Past is worth calling
// again soon). Callers that don't care can ignore the return value.
func (c *Clock) Tick(n int64) bool {
	c.ticks += n
	if c.ticks >= tickInterval {
		c.ticks = 0
		c.lastWall = c.now()
		return true
	}
	return false
}

// Past reports whether the wall clock, as of the last coarsened
// sample, is at or past deadline. Past does not itself sample the
// wall clock; callers that need an up-to-date read should call Tick
// first (or use PastNow for a forced sample).
func (c *Clock) Past(deadline time.Time) bool {
	return !c.lastWall.Before(deadline)
}

// PastNow forces a fresh wall-clock sample and reports whether it is
// at or past deadline, resetting the tick counter.
func (c *Clock) PastNow(deadline time.Time) bool {
	c.ticks = 0
	c.lastWall = c.now()
	return !c.lastWall.Before(deadline)
}

// Overshoot reports how far past deadline the last sample is (zero or
// negative if not yet past), used to decide log severity when
// run_until_deadline overruns.
func (c *Clock) Overshoot(deadline time.Time) time.Duration {
	return c.lastWall.Sub(deadline)
}
