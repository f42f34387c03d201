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

// Package exec implements the per-request cooperative execution
// stack: a LIFO chain of suspendable frames driven by run_until_deadline
// until the stack empties, an error occurs, or the deadline is
// overrun. Nothing in internal/read, internal/write or
// internal/session pushes frames onto a Stack or calls
// RunUntilDeadline: the read and write engines evaluate synchronously,
// and a session.Request only holds the Stack it is given.
package exec

import (
	"time"

	"github.com/graphd/graphd/internal/clock"
	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/iterator"
)

// RunFunc executes one slice of a frame's work. It must consume
// budget and return iterator.More as soon as the budget is spent, so
// run_until_deadline can check the wall clock and yield to other
// requests. iterator.EOF/iterator.Ready both mean the frame is done
// and should be popped; an error aborts the whole stack.
type RunFunc func(b *iterator.Budget) (iterator.Signal, error)

// SuspendFunc releases whatever transient state (a loaded primitive,
// an open cache handle) the frame is holding so the request can be
// safely parked. A frame with no such state may leave this nil.
type SuspendFunc func() error

// UnsuspendFunc reacquires what SuspendFunc released, reloading
// whatever the frame needs to resume running.
type UnsuspendFunc func() error

// Frame is one suspendable unit of work on the stack. ResourceHandle
// identifies the frame to the owning request's resource manager so
// aborting the request releases every live frame in LIFO order, even
// ones pushed by a callback after the stack started running.
type Frame struct {
	ResourceHandle int64
	Type           string
	Run            RunFunc
	Suspend        SuspendFunc
	Unsuspend      UnsuspendFunc
	// State is the frame's private typed data (e.g. a *read.SetFrame);
	// the scheduler never inspects it.
	State any
}

// ErrNotFound is returned by a frame's Run to signal that the stack
// has nothing left to contribute and evaluation should stop cleanly
// (not an error condition, but not iterator.EOF either, since EOF
// describes one iterator's exhaustion and NotFound describes the
// whole stack's).
type ErrNotFound struct{}

func (ErrNotFound) Error() string { return "exec: not found" }

// Stack is one request's LIFO chain of frames. It is not safe for
// concurrent use; each request's goroutine (or cooperative scheduler
// slot) owns one.
type Stack struct {
	frames []*Frame
	clock  *clock.Clock
	log    *diag.Logger
	// IsWrite selects the overshoot log level in run_until_deadline:
	// writes are allowed to overshoot (logged at debug), reads are not
	// (logged at error).
	IsWrite bool
}

// New creates an empty Stack. log may be nil, in which case overshoot
// is silently ignored.
func New(log *diag.Logger) *Stack {
	return &Stack{clock: clock.New(), log: log}
}

// Push adds frame to the top of the stack.
func (s *Stack) Push(f *Frame) {
	s.frames = append(s.frames, f)
}

// Pop removes and returns the top frame, or nil if the stack is empty.
func (s *Stack) Pop() *Frame {
	n := len(s.frames)
	if n == 0 {
		return nil
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

// Top returns the top frame without removing it, or nil if empty.
func (s *Stack) Top() *Frame {
	if n := len(s.frames); n > 0 {
		return s.frames[n-1]
	}
	return nil
}

// Len reports how many frames are on the stack.
func (s *Stack) Len() int { return len(s.frames) }

// Remove deletes a specific frame from the stack, wherever it is,
// preserving the relative order of the rest. This is needed because a
// frame's Run may have pushed new frames above it before erroring or
// before the caller decides to remove an unrelated frame.
func (s *Stack) Remove(f *Frame) bool {
	for i, cur := range s.frames {
		if cur == f {
			s.frames = append(s.frames[:i], s.frames[i+1:]...)
			return true
		}
	}
	return false
}

// SuspendAll calls Suspend on every frame, top to bottom. If any
// frame lacks a Suspend function, the whole suspend fails and
// SuspendAll returns iterator.More without having suspended any
// further frames past the failure point — the request is expected to
// run to completion (or error) instead of being parked.
func (s *Stack) SuspendAll() (iterator.Signal, error) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.Suspend == nil {
			return iterator.More, nil
		}
		if err := f.Suspend(); err != nil {
			return iterator.Ready, err
		}
	}
	return iterator.Ready, nil
}

// UnsuspendAll is the inverse of SuspendAll: it calls Unsuspend on
// every frame, bottom to top, and fails the same way if any frame
// lacks an Unsuspend function.
func (s *Stack) UnsuspendAll() (iterator.Signal, error) {
	for _, f := range s.frames {
		if f.Unsuspend == nil {
			return iterator.More, nil
		}
		if err := f.Unsuspend(); err != nil {
			return iterator.Ready, err
		}
	}
	return iterator.Ready, nil
}

// overshootGrace is the maximum a deadline may be exceeded before
// RunUntilDeadline logs it as noteworthy.
const overshootGrace = 500 * time.Millisecond

// RunUntilDeadline repeatedly calls the top frame's Run, popping
// finished frames, until:
//   - the stack empties (returns iterator.EOF, nil),
//   - a frame returns ErrNotFound (returns iterator.EOF, nil — same
//     as an emptied stack, since there is nothing further to do),
//   - a frame returns any other error (returns iterator.Ready, err),
//   - or the deadline is reached, in which case it returns
//     iterator.More, nil so the caller knows to reschedule this
//     request rather than treat it as done.
//
// Roughly every 5,000,000 logical ticks the wall clock is sampled;
// RunUntilDeadline never checks the clock more often than that, so a
// single frame can run for a while past the deadline before the next
// check — if that overrun exceeds overshootGrace, it is logged at
// error level for a read and debug level for a write.
func (s *Stack) RunUntilDeadline(budget *iterator.Budget, deadline time.Time) (iterator.Signal, error) {
	for {
		f := s.Top()
		if f == nil {
			return iterator.EOF, nil
		}
		before := budget.Remaining
		sig, err := f.Run(budget)
		if err != nil {
			if _, ok := err.(ErrNotFound); ok {
				return iterator.EOF, nil
			}
			return iterator.Ready, err
		}
		if sig != iterator.More {
			s.Pop()
			if s.Len() == 0 {
				return iterator.EOF, nil
			}
			continue
		}
		if budget.Exhausted() {
			return iterator.More, nil
		}
		spent := before - budget.Remaining
		if spent <= 0 {
			spent = 1
		}
		if s.clock.Tick(spent) {
			if s.clock.PastNow(deadline) {
				if over := s.clock.Overshoot(deadline); over > overshootGrace {
					if s.IsWrite {
						s.log.Debugf("request overshot deadline by %v (write)", over)
					} else {
						s.log.Errorf("request overshot deadline by %v (read)", over)
					}
				}
				return iterator.More, nil
			}
		}
	}
}
