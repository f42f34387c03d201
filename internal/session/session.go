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

// Package session implements the per-request lifecycle wrapper every
// read/iterate/write request is built on: a constraint arena, a
// runtime-statistics accumulator, a cost-limit budget, a dateline
// stamp taken at request start, and cancellation plumbed through a
// context.Context so a client disconnect unwinds the request's frame
// stack the same way a timeout does.
package session

import (
	"context"
	"time"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/dateline"
	"github.com/graphd/graphd/internal/exec"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/iterator"
)

// Stats accumulates runtime statistics for one request: total cost
// spent, primitives visited, and elapsed wall time, mirroring the
// cost/n/elapsed triple a plan execution reports back through.
type Stats struct {
	Cost    int64
	N       int64
	Started time.Time
	Elapsed time.Duration
}

func (s *Stats) finish() { s.Elapsed = time.Since(s.Started) }

// DefaultCostLimit is the countlimit-style cost ceiling applied when a
// request doesn't specify one.
const DefaultCostLimit = 1 << 16

// Request is one accepted read/iterate/write's full lifecycle state.
type Request struct {
	Arena     *constraint.Arena
	Root      constraint.ID
	Stats     Stats
	CostLimit int64
	// Dateline is stamped at request start (Request.Start) so every
	// read inside the request sees a consistent snapshot of the
	// append history regardless of concurrent writes.
	Dateline dateline.Dateline
	Deadline time.Time

	ctx    context.Context
	cancel context.CancelFunc
	stack  *exec.Stack
}

// New creates a Request with a fresh arena and the given cost limit
// (DefaultCostLimit if costLimit <= 0), deriving its own cancellation
// scope from parent so a client disconnect (parent.Done()) propagates.
func New(parent context.Context, costLimit int64, timeout time.Duration, stack *exec.Stack) *Request {
	if costLimit <= 0 {
		costLimit = DefaultCostLimit
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Request{
		Arena:     constraint.NewArena(),
		Root:      constraint.NoID,
		CostLimit: costLimit,
		Deadline:  time.Now().Add(timeout),
		ctx:       ctx,
		cancel:    cancel,
		stack:     stack,
	}
	return r
}

// Start stamps Dateline and Stats.Started; call once the request's
// constraint tree is ready and before any iterator work begins.
func (r *Request) Start(snapshot dateline.Dateline) {
	r.Dateline = snapshot
	r.Stats.Started = time.Now()
}

// Context returns the request's cancellation-aware context.
func (r *Request) Context() context.Context { return r.ctx }

// Cancel aborts the request by cancelling its context (observable via
// ctx.Done() by anything selecting on it). It does not pop or release
// any frames on the stack supplied to New.
func (r *Request) Cancel() {
	r.cancel()
}

// Cancelled reports whether the request's context has been cancelled,
// the check a set frame makes at the top of its loop per iteration.
func (r *Request) Cancelled() bool {
	select {
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}

// Budget returns an iterator.Budget seeded from the remaining cost
// limit, i.e. CostLimit minus whatever Stats.Cost has already
// accumulated.
func (r *Request) Budget() *iterator.Budget {
	remaining := r.CostLimit - r.Stats.Cost
	if remaining < 0 {
		remaining = 0
	}
	return &iterator.Budget{Remaining: remaining}
}

// Charge folds a Budget's consumption back into Stats.Cost after a
// slice of work, and reports graphderr.TooBigf's sibling — a cost
// overrun — as an error once the request's total exceeds CostLimit.
func (r *Request) Charge(spent *iterator.Budget, before int64) error {
	r.Stats.Cost += before - spent.Remaining
	if r.Stats.Cost > r.CostLimit {
		return graphderr.TooManyf("request exceeded cost limit %d", r.CostLimit)
	}
	return nil
}

// Finish stops the stats clock; call exactly once when the request's
// reply has been fully produced (success or error).
func (r *Request) Finish() { r.Stats.finish() }
