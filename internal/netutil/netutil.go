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

// Package netutil implements the length-prefixed framing the SMP
// leader/follower protocol (internal/smpwire) uses on top of a plain
// net.Conn, plus a small accept-loop helper shared by cmd/graphd's
// client and follower listeners.
package netutil

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// headerMagic tags every frame so a misframed or non-protocol
// connection is rejected immediately instead of being misread as a
// huge length prefix.
const headerMagic uint32 = 0xe448f02e

const headerSize = 4 + 4 // magic + length

// MaxFrameSize bounds a single frame's payload so a corrupt or
// hostile peer cannot force an unbounded allocation.
const MaxFrameSize = 64 << 20

// WriteFrame writes payload to w as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("netutil: frame of %d bytes exceeds MaxFrameSize", len(payload))
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], headerMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	if magic != headerMagic {
		return nil, fmt.Errorf("netutil: bad frame magic %#x", magic)
	}
	size := binary.LittleEndian.Uint32(hdr[4:8])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("netutil: frame of %d bytes exceeds MaxFrameSize", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Serve accepts connections on l until it returns an error (including
// when l is closed), invoking handle in its own goroutine per
// connection. Serve itself returns once Accept fails.
func Serve(l net.Listener, handle func(net.Conn)) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go handle(conn)
	}
}
