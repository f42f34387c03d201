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
	"context"
	"net"
	"os"
	"time"

	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/smpwire"
)

// followerClient is the follower side of the SMP handshake: it dials
// the leader, announces its pid, and acks each PREWRITE with PAUSED
// as soon as it arrives; a POSTWRITE is only logged. This
// process has no store replication of its own - there is no shared or
// persistent backend here for a second process to read from - so this
// client only ever proves out the coordination protocol itself; it
// does not make the follower able to answer client requests from the
// leader's data.
type followerClient struct {
	leaderAddr string
	log        *diag.Logger
}

func newFollowerClient(leaderAddr string, log *diag.Logger) *followerClient {
	return &followerClient{leaderAddr: leaderAddr, log: log}
}

// run dials the leader and services the handshake until ctx is
// cancelled, reconnecting with a fixed backoff on any connection
// error.
func (fc *followerClient) run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := fc.session(ctx); err != nil {
			fc.log.Errorf("smp: follower session with %s ended: %v", fc.leaderAddr, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (fc *followerClient) session(ctx context.Context) error {
	conn, err := net.Dial("tcp", fc.leaderAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := smpwire.Write(conn, smpwire.Message{Kind: smpwire.Connect, PID: int32(os.Getpid())}); err != nil {
		return err
	}
	fc.log.Infof("smp: connected to leader %s", fc.leaderAddr)

	for {
		m, err := smpwire.Read(conn)
		if err != nil {
			return err
		}
		switch m.Kind {
		case smpwire.PreWrite:
			// A real deployment would stop serving reads from its
			// replica here before acking. This process has no
			// replica store to suspend.
			if err := smpwire.Write(conn, smpwire.Message{Kind: smpwire.Paused}); err != nil {
				return err
			}
			fc.log.Debugf("smp: paused for leader write")
		case smpwire.PostWrite:
			fc.log.Debugf("smp: resuming after leader write")
		default:
			fc.log.Errorf("smp: unexpected message %v from leader", m.Kind)
		}
	}
}
