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

package smp

import "testing"

func TestWriteWithNoFollowersDoesNotSuspend(t *testing.T) {
	l := NewLeader(0)
	a := l.BeginWrite()
	if a.BroadcastPreWrite {
		t.Fatal("should not broadcast PREWRITE with no followers")
	}
	if l.State() != Run {
		t.Fatalf("state = %v, want Run", l.State())
	}
}

func TestWriteSuspendsUntilAllFollowersPause(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 100)
	l.Register("f2", 200)

	a := l.BeginWrite()
	if !a.BroadcastPreWrite {
		t.Fatal("expected PREWRITE broadcast")
	}
	if l.State() != SentPause {
		t.Fatalf("state = %v, want SentPause", l.State())
	}

	a = l.OnFollowerPaused("f1")
	if a.ResumeWrite {
		t.Fatal("should not resume with only 1/2 followers paused and no timeout condition yet")
	}
	if len(a.TimeoutStragglers) != 1 || a.TimeoutStragglers[0] != "f2" {
		t.Fatalf("expected f2 flagged as straggler once half paused, got %v", a.TimeoutStragglers)
	}

	a = l.OnFollowerPaused("f2")
	if !a.ResumeWrite {
		t.Fatal("expected resume once all followers paused")
	}
	if l.State() != Pause {
		t.Fatalf("state = %v, want Pause", l.State())
	}
}

func TestCommitReturnsToRun(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 1)
	l.BeginWrite()
	l.OnFollowerPaused("f1")
	a := l.Commit()
	if !a.BroadcastPostWrite {
		t.Fatal("expected POSTWRITE broadcast")
	}
	if l.State() != Run {
		t.Fatalf("state = %v, want Run", l.State())
	}
}

func TestCancelSuspendedWriteBroadcastsPostWrite(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 1)
	l.BeginWrite()
	a := l.CancelSuspendedWrite()
	if !a.BroadcastPostWrite {
		t.Fatal("expected POSTWRITE broadcast on cancellation")
	}
	if l.State() != Run {
		t.Fatalf("state = %v, want Run", l.State())
	}
}

func TestUnregisterDuringPauseReevaluates(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 1)
	l.Register("f2", 2)
	l.BeginWrite()
	l.OnFollowerPaused("f1")
	// f2 dies while the leader is still waiting on it
	a := l.Unregister("f2")
	if !a.ResumeWrite {
		t.Fatal("expected resume once the only remaining follower is paused")
	}
}

func TestStragglerTimeoutSignalsPID(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 77)
	l.BeginWrite()
	a := l.StragglerTimedOut("f1")
	if a.SigquitPID != 77 {
		t.Fatalf("SigquitPID = %d, want 77", a.SigquitPID)
	}
}

func TestStragglerTimeoutNoopIfAlreadyPaused(t *testing.T) {
	l := NewLeader(0)
	l.Register("f1", 77)
	l.BeginWrite()
	l.OnFollowerPaused("f1")
	a := l.StragglerTimedOut("f1")
	if a.SigquitPID != 0 {
		t.Fatal("should not signal a follower that already paused")
	}
}
