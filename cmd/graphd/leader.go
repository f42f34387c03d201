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

package main

import (
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/netutil"
	"github.com/graphd/graphd/internal/smp"
	"github.com/graphd/graphd/internal/smpwire"
)

// leaderCoordinator is the network-facing half of internal/smp.Leader:
// it owns one net.Conn per registered follower, turns smp.Action
// values into actual smpwire broadcasts, and turns inbound PAUSED
// messages back into smp.Leader method calls. internal/smp.Leader
// itself does no I/O, by design - this is the caller its own doc
// comment says must exist.
type leaderCoordinator struct {
	l   *smp.Leader
	log *diag.Logger

	mu      sync.Mutex
	conns   map[string]net.Conn
	resume  chan struct{}
	closing bool
}

func newLeaderCoordinator(stragglerTimeout time.Duration, log *diag.Logger) *leaderCoordinator {
	return &leaderCoordinator{
		l:     smp.NewLeader(stragglerTimeout),
		log:   log,
		conns: map[string]net.Conn{},
	}
}

// serve accepts follower connections until l is closed.
func (lc *leaderCoordinator) serve(l net.Listener) {
	_ = netutil.Serve(l, lc.handleFollower)
}

func (lc *leaderCoordinator) shutdown() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.closing = true
	for _, c := range lc.conns {
		c.Close()
	}
}

// handleFollower services one follower connection start to finish: it
// expects a CONNECT first, registers the follower, then loops relaying
// PAUSED acks to the coordinator until the connection drops.
func (lc *leaderCoordinator) handleFollower(conn net.Conn) {
	defer conn.Close()
	msg, err := smpwire.Read(conn)
	if err != nil || msg.Kind != smpwire.Connect {
		lc.log.Errorf("smp: expected CONNECT from %s, got %v (err=%v)", conn.RemoteAddr(), msg.Kind, err)
		return
	}
	id := conn.RemoteAddr().String()
	lc.mu.Lock()
	lc.conns[id] = conn
	lc.mu.Unlock()
	lc.l.Register(id, msg.PID)
	lc.log.Infof("smp: follower %s connected (pid %d)", id, msg.PID)

	defer func() {
		lc.mu.Lock()
		delete(lc.conns, id)
		lc.mu.Unlock()
		lc.applyAction(lc.l.Unregister(id))
	}()

	for {
		m, err := smpwire.Read(conn)
		if err != nil {
			return
		}
		switch m.Kind {
		case smpwire.Paused:
			lc.applyAction(lc.l.OnFollowerPaused(id))
		default:
			lc.log.Errorf("smp: unexpected message %v from follower %s", m.Kind, id)
		}
	}
}

// applyAction executes whatever the state machine asked for:
// broadcasting a message, signalling the waiting writer, or arming
// straggler timeouts.
func (lc *leaderCoordinator) applyAction(a smp.Action) {
	if a.BroadcastPreWrite {
		lc.broadcast(smpwire.Message{Kind: smpwire.PreWrite})
	}
	if a.BroadcastPostWrite {
		lc.broadcast(smpwire.Message{Kind: smpwire.PostWrite})
	}
	if a.ResumeWrite {
		lc.mu.Lock()
		if lc.resume != nil {
			close(lc.resume)
			lc.resume = nil
		}
		lc.mu.Unlock()
	}
	for _, id := range a.TimeoutStragglers {
		go lc.armStraggler(id)
	}
}

func (lc *leaderCoordinator) armStraggler(id string) {
	time.Sleep(lc.l.StragglerTimeout)
	a := lc.l.StragglerTimedOut(id)
	if a.SigquitPID != 0 {
		lc.log.Errorf("smp: follower %s failed to pause in time, sending SIGQUIT to pid %d", id, a.SigquitPID)
		_ = syscall.Kill(int(a.SigquitPID), syscall.SIGQUIT)
	}
	lc.applyAction(a)
}

func (lc *leaderCoordinator) broadcast(m smpwire.Message) {
	lc.mu.Lock()
	conns := make([]net.Conn, 0, len(lc.conns))
	for _, c := range lc.conns {
		conns = append(conns, c)
	}
	lc.mu.Unlock()
	for _, c := range conns {
		if err := smpwire.Write(c, m); err != nil {
			lc.log.Errorf("smp: broadcast %v to %s failed: %v", m.Kind, c.RemoteAddr(), err)
		}
	}
}

// beginWrite suspends the write until every registered follower has
// acked PAUSED, or returns immediately if no followers are registered.
func (lc *leaderCoordinator) beginWrite() {
	lc.mu.Lock()
	if lc.closing {
		lc.mu.Unlock()
		return
	}
	resume := make(chan struct{})
	lc.resume = resume
	lc.mu.Unlock()

	action := lc.l.BeginWrite()
	if !action.BroadcastPreWrite {
		return
	}
	lc.broadcast(smpwire.Message{Kind: smpwire.PreWrite})
	<-resume
}

// commit runs after the write has been applied to the store,
// releasing the followers' read suspension.
func (lc *leaderCoordinator) commit() {
	lc.applyAction(lc.l.Commit())
}
