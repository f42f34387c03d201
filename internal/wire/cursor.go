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

package wire

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/graphd/graphd/internal/dateline"
)

// Cursor is the decoded form of the opaque continuation string a read
// reply hands back for pagination: an offset into the result set, an
// optional dateline snapshot pinning the read to a point in the
// append history, and the iterator's frozen state (plus, for sorted
// reads, the sort buffer's own offset).
type Cursor struct {
	Offset     uint64
	HasDate    bool
	Dateline   dateline.Dateline
	SortOffset uint64
	State      []byte // opaque iterator freeze payload
}

// Encode renders c as the base64url text handed back to a client.
// Layout: varint offset, a presence byte, [dateline bytes if present],
// varint sort offset, varint state length, state bytes.
func (c Cursor) Encode() string {
	buf := make([]byte, 0, 64)
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], c.Offset)
	buf = append(buf, tmp[:n]...)

	if c.HasDate {
		buf = append(buf, 1)
		buf = append(buf, c.Dateline.Encode()...)
	} else {
		buf = append(buf, 0)
	}

	n = binary.PutUvarint(tmp[:], c.SortOffset)
	buf = append(buf, tmp[:n]...)

	n = binary.PutUvarint(tmp[:], uint64(len(c.State)))
	buf = append(buf, tmp[:n]...)
	buf = append(buf, c.State...)

	return base64.URLEncoding.EncodeToString(buf)
}

// DecodeCursor parses the text produced by Cursor.Encode.
func DecodeCursor(text string) (Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return Cursor{}, fmt.Errorf("wire: malformed cursor: %w", err)
	}
	var c Cursor
	offset, n := binary.Uvarint(raw)
	if n <= 0 {
		return Cursor{}, fmt.Errorf("wire: malformed cursor offset")
	}
	c.Offset = offset
	raw = raw[n:]

	if len(raw) == 0 {
		return Cursor{}, fmt.Errorf("wire: truncated cursor")
	}
	present := raw[0]
	raw = raw[1:]
	if present == 1 {
		dl, rest, err := dateline.Decode(raw)
		if err != nil {
			return Cursor{}, fmt.Errorf("wire: malformed cursor dateline: %w", err)
		}
		c.HasDate = true
		c.Dateline = dl
		raw = rest
	}

	sortOffset, n := binary.Uvarint(raw)
	if n <= 0 {
		return Cursor{}, fmt.Errorf("wire: malformed cursor sort offset")
	}
	c.SortOffset = sortOffset
	raw = raw[n:]

	stateLen, n := binary.Uvarint(raw)
	if n <= 0 {
		return Cursor{}, fmt.Errorf("wire: malformed cursor state length")
	}
	raw = raw[n:]
	if uint64(len(raw)) < stateLen {
		return Cursor{}, fmt.Errorf("wire: truncated cursor state")
	}
	c.State = raw[:stateLen]
	return c, nil
}
