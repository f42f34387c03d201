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
	"bytes"
	"net"
	"strings"
	"testing"
	"time"
)

// echoServer stands in for graphd: it echoes back "ok (<line>)" for
// every request line it reads, enough to exercise graphctl's framing
// without depending on the real request engine.
func echoServer(t *testing.T, l net.Listener) {
	conn, err := l.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		conn.Write([]byte("ok (" + line + ")\n"))
	}
}

func TestClientRunOne(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go echoServer(t, l)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn), timeout: 5 * time.Second}

	var buf bytes.Buffer
	if err := c.runOne(`read (type="Person")`, &buf); err != nil {
		t.Fatalf("runOne: %v", err)
	}
	if !strings.Contains(buf.String(), `type="Person"`) {
		t.Fatalf("expected echoed request in reply, got %q", buf.String())
	}
}

func TestClientRunOneSkipsBlank(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go echoServer(t, l)

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn), timeout: 5 * time.Second}

	var buf bytes.Buffer
	if err := c.runOne("   ", &buf); err != nil {
		t.Fatalf("runOne on blank input: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output for a blank request, got %q", buf.String())
	}
}
