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

// Package smpwire implements the wire messages exchanged between an
// SMP leader and its followers: the follower's CONNECT announcement,
// two leader->follower commands (PREWRITE, POSTWRITE) and two
// follower->leader responses (PAUSED, RUNNING), each framed with
// internal/netutil.
package smpwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/graphd/graphd/internal/netutil"
)

// Kind tags one smpwire message.
type Kind byte

const (
	Connect Kind = iota + 1
	PreWrite
	PostWrite
	Paused
	Running
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "CONNECT"
	case PreWrite:
		return "PREWRITE"
	case PostWrite:
		return "POSTWRITE"
	case Paused:
		return "PAUSED"
	case Running:
		return "RUNNING"
	default:
		return fmt.Sprintf("smpwire.Kind(%d)", byte(k))
	}
}

// Message is one decoded smpwire frame. PID is populated only for
// Connect, carrying the follower's OS pid so the leader's supervisor
// can signal it directly on a stall.
type Message struct {
	Kind Kind
	PID  int32
}

// Encode serializes m to its wire form: one kind byte followed by a
// little-endian int32 PID (zero when not applicable).
func (m Message) Encode() []byte {
	buf := make([]byte, 5)
	buf[0] = byte(m.Kind)
	binary.LittleEndian.PutUint32(buf[1:], uint32(m.PID))
	return buf
}

// Decode parses the wire form produced by Encode.
func Decode(buf []byte) (Message, error) {
	if len(buf) != 5 {
		return Message{}, fmt.Errorf("smpwire: message is %d bytes, want 5", len(buf))
	}
	return Message{
		Kind: Kind(buf[0]),
		PID:  int32(binary.LittleEndian.Uint32(buf[1:])),
	}, nil
}

// Write frames and writes m to w.
func Write(w io.Writer, m Message) error {
	return netutil.WriteFrame(w, m.Encode())
}

// Read reads and decodes one framed message from r.
func Read(r io.Reader) (Message, error) {
	buf, err := netutil.ReadFrame(r)
	if err != nil {
		return Message{}, err
	}
	return Decode(buf)
}
