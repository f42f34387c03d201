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
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/graphd/graphd/internal/dateline"
	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/exec"
	"github.com/graphd/graphd/internal/netutil"
	"github.com/graphd/graphd/internal/request"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
	"github.com/graphd/graphd/internal/write"
)

// server owns the shared store and bootstrap one graphd process
// serves every client connection against; each accepted connection
// and each request within it gets its own session.Request and
// exec.Stack, per session.Request's "not safe for concurrent use"
// contract.
type server struct {
	store     store.Store
	bootstrap *write.Bootstrap
	log       *diag.Logger
	costLimit int64
	deadline  time.Duration
	leader    *leaderCoordinator
}

func newServer(st store.Store, log *diag.Logger, costLimit int64, deadline time.Duration) *server {
	return &server{
		store:     st,
		bootstrap: write.NewBootstrap(st),
		log:       log,
		costLimit: costLimit,
		deadline:  deadline,
	}
}

// serve accepts client connections until l is closed, handling each
// on its own goroutine via internal/netutil.Serve.
func (s *server) serve(l net.Listener) error {
	return netutil.Serve(l, s.handleConn)
}

// handleConn reads newline-delimited request lines from conn and
// writes back one reply line per request, until the client closes the
// connection or sends a blank line's worth of EOF.
func (s *server) handleConn(conn net.Conn) {
	defer conn.Close()
	sessionID := newSessionID()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), netutil.MaxFrameSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := s.handleLine(conn.RemoteAddr().String()+"/"+sessionID, line)
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			s.log.Debugf("graphd: write to %s failed: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

// handleLine runs one request line, gating it through the SMP
// coordinator first if it names a write command.
func (s *server) handleLine(sessionID, line string) string {
	isWrite := strings.HasPrefix(strings.TrimSpace(line), "write")
	if isWrite && s.leader != nil {
		s.log.Debugf("graphd: %s suspending followers for a write", sessionID)
		s.leader.beginWrite()
		defer s.leader.commit()
	}

	stack := exec.New(s.log)
	req := session.New(context.Background(), s.costLimit, s.deadline, stack)
	// A standalone or leader-role store has no multi-instance append
	// history to snapshot yet, so every request sees an empty (no
	// floor) dateline; asof= still works per-request through
	// internal/request's own TimestampSearcher assertion.
	req.Start(dateline.Dateline{})
	defer req.Finish()

	return request.Handle(req.Context(), s.store, req, s.bootstrap, line)
}

func newSessionID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
