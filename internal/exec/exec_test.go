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

package exec

import (
	"errors"
	"testing"
	"time"

	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/iterator"
)

func countingFrame(remaining *int) *Frame {
	return &Frame{
		Run: func(b *iterator.Budget) (iterator.Signal, error) {
			b.Spend(1)
			*remaining--
			if *remaining <= 0 {
				return iterator.EOF, nil
			}
			return iterator.More, nil
		},
	}
}

func TestRunUntilDeadlineDrainsStack(t *testing.T) {
	s := New(diag.New(diag.LevelError))
	n := 3
	s.Push(countingFrame(&n))
	sig, err := s.RunUntilDeadline(&iterator.Budget{Remaining: 1000}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sig != iterator.EOF {
		t.Fatalf("sig = %v, want EOF", sig)
	}
	if s.Len() != 0 {
		t.Fatalf("stack len = %d, want 0", s.Len())
	}
}

func TestRunUntilDeadlineBudgetExhausted(t *testing.T) {
	s := New(diag.New(diag.LevelError))
	n := 1000
	s.Push(countingFrame(&n))
	sig, err := s.RunUntilDeadline(&iterator.Budget{Remaining: 2}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sig != iterator.More {
		t.Fatalf("sig = %v, want More", sig)
	}
	if s.Len() != 1 {
		t.Fatalf("stack len = %d, want 1 (frame still pending)", s.Len())
	}
}

func TestRunUntilDeadlinePropagatesError(t *testing.T) {
	s := New(diag.New(diag.LevelError))
	wantErr := errors.New("boom")
	s.Push(&Frame{Run: func(b *iterator.Budget) (iterator.Signal, error) {
		return iterator.Ready, wantErr
	}})
	_, err := s.RunUntilDeadline(&iterator.Budget{Remaining: 10}, time.Now().Add(time.Hour))
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestRunUntilDeadlineNotFoundIsClean(t *testing.T) {
	s := New(diag.New(diag.LevelError))
	s.Push(&Frame{Run: func(b *iterator.Budget) (iterator.Signal, error) {
		return iterator.Ready, ErrNotFound{}
	}})
	sig, err := s.RunUntilDeadline(&iterator.Budget{Remaining: 10}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sig != iterator.EOF {
		t.Fatalf("sig = %v, want EOF", sig)
	}
}

func TestRunUntilDeadlineEmptyStack(t *testing.T) {
	s := New(diag.New(diag.LevelError))
	sig, err := s.RunUntilDeadline(&iterator.Budget{Remaining: 10}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sig != iterator.EOF {
		t.Fatalf("sig = %v, want EOF", sig)
	}
}

func TestSuspendAllFailsWithoutSuspendFunc(t *testing.T) {
	s := New(nil)
	s.Push(&Frame{Run: func(b *iterator.Budget) (iterator.Signal, error) { return iterator.EOF, nil }})
	sig, err := s.SuspendAll()
	if err != nil {
		t.Fatal(err)
	}
	if sig != iterator.More {
		t.Fatalf("sig = %v, want More (missing Suspend should block suspension)", sig)
	}
}

func TestSuspendUnsuspendRoundTrip(t *testing.T) {
	s := New(nil)
	var suspended, unsuspended bool
	s.Push(&Frame{
		Run:       func(b *iterator.Budget) (iterator.Signal, error) { return iterator.EOF, nil },
		Suspend:   func() error { suspended = true; return nil },
		Unsuspend: func() error { unsuspended = true; return nil },
	})
	if sig, err := s.SuspendAll(); err != nil || sig != iterator.Ready {
		t.Fatalf("SuspendAll: sig=%v err=%v", sig, err)
	}
	if !suspended {
		t.Fatal("Suspend was not called")
	}
	if sig, err := s.UnsuspendAll(); err != nil || sig != iterator.Ready {
		t.Fatalf("UnsuspendAll: sig=%v err=%v", sig, err)
	}
	if !unsuspended {
		t.Fatal("Unsuspend was not called")
	}
}

func TestRemoveNonTopFrame(t *testing.T) {
	s := New(nil)
	bottom := &Frame{Run: func(b *iterator.Budget) (iterator.Signal, error) { return iterator.More, nil }}
	top := &Frame{Run: func(b *iterator.Budget) (iterator.Signal, error) { return iterator.More, nil }}
	s.Push(bottom)
	s.Push(top)
	if !s.Remove(bottom) {
		t.Fatal("Remove reported false for a frame that is on the stack")
	}
	if s.Len() != 1 || s.Top() != top {
		t.Fatalf("expected only top frame to remain")
	}
}
