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
	"net"
	"strings"
	"testing"
	"time"

	"github.com/graphd/graphd/internal/diag"
	"github.com/graphd/graphd/internal/store"
)

func TestServerHandleLineWriteThenRead(t *testing.T) {
	srv := newServer(store.NewMemory(1), diag.New(diag.LevelError), 0, time.Minute)

	writeReply := srv.handleLine("t1", `write (name="bob" key=(name) result=((guid)))`)
	if !strings.HasPrefix(writeReply, "ok ") {
		t.Fatalf("write failed: %s", writeReply)
	}

	readReply := srv.handleLine("t1", `read (name="bob" result=((guid name)))`)
	if !strings.HasPrefix(readReply, "ok ") {
		t.Fatalf("read failed: %s", readReply)
	}
	if !strings.Contains(readReply, `"bob"`) {
		t.Fatalf("expected reply to carry back the name, got %s", readReply)
	}
}

func TestServerHandleLineSyntaxError(t *testing.T) {
	srv := newServer(store.NewMemory(1), diag.New(diag.LevelError), 0, time.Minute)
	reply := srv.handleLine("t1", `read (`)
	if !strings.HasPrefix(reply, "error ") {
		t.Fatalf("expected error reply, got %s", reply)
	}
}

func TestServerServeOverLoopback(t *testing.T) {
	srv := newServer(store.NewMemory(1), diag.New(diag.LevelError), 0, time.Minute)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go srv.serve(l)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("write (name=\"carol\" key=(name) result=((guid)))\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !strings.HasPrefix(line, "ok ") {
		t.Fatalf("expected ok reply, got %s", line)
	}
}
