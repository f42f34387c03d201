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

// Package primitive implements the immutable, content-addressed
// primitive record that is the unit of storage for the graph: its
// 128-bit GUID identity, its typed linkages, and the small set of
// intrinsic fields every primitive carries.
package primitive

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ID is a primitive's local integer id: monotonic insertion order,
// and the key every iterator orders by.
type ID = int64

// GUID is the 128-bit identity of a primitive. It encodes lineage
// (which chain of versions this primitive belongs to) and generation
// (where in that chain) only insofar as the store chooses to derive
// new GUIDs from old ones; the GUID itself is an opaque fixed-size
// value with a total order so it can key sorted iterators.
type GUID [16]byte

// Null is the zero GUID, used as "no linkage" in a primitive's
// left/right/typeguid/scope slots.
var Null GUID

// IsNull reports whether g is the zero GUID.
func (g GUID) IsNull() bool { return g == Null }

// Compare returns -1, 0, or 1 as g is less than, equal to, or
// greater than o, using the GUID's byte representation as a total
// order. This order has no semantic meaning beyond "stable and
// total" - it is what fixed iterators sort by when they are not
// sorting by local id.
func (g GUID) Compare(o GUID) int {
	return bytes.Compare(g[:], o[:])
}

// Less reports whether g sorts before o under Compare.
func (g GUID) Less(o GUID) bool { return g.Compare(o) < 0 }

// String renders g as lowercase hex, matching the wire GUID
// representation clients see in requests and replies.
func (g GUID) String() string { return hex.EncodeToString(g[:]) }

// ParseGUID parses the hex representation produced by String.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	if len(s) != 32 {
		return g, fmt.Errorf("primitive: GUID %q must be 32 hex characters", s)
	}
	n, err := hex.Decode(g[:], []byte(s))
	if err != nil {
		return g, fmt.Errorf("primitive: invalid GUID %q: %w", s, err)
	}
	if n != 16 {
		return g, fmt.Errorf("primitive: GUID %q decoded to %d bytes, want 16", s, n)
	}
	return g, nil
}

// NewGUID mints a fresh, random GUID. The store's allocation path
// uses ContentGUID instead; NewGUID remains for callers that need a
// GUID with no backing primitive to content-address (tests, and
// scope/type GUIDs minted ahead of the primitive that will carry
// them).
func NewGUID() GUID {
	id := uuid.New()
	var g GUID
	copy(g[:], id[:])
	return g
}

// ContentGUID derives p's GUID from the canonical encoding of its own
// fields via blake2b, rather than a random source: p.LocalID is
// already unique per store (monotonic insertion order), so folding it
// into the hash alongside the rest of p's content guarantees distinct
// primitives never collide while still making the GUID a function of
// the primitive's recorded content, not of an external random
// generator - the content-addressing the store's identity model is
// built on.
func ContentGUID(p *Primitive) GUID {
	h, err := blake2b.New(len(GUID{}), nil)
	if err != nil {
		panic("primitive: blake2b.New: " + err.Error())
	}
	var buf [8]byte
	putInt64 := func(v int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	putString := func(s string) {
		putInt64(int64(len(s)))
		h.Write([]byte(s))
	}
	putInt64(p.LocalID)
	putInt64(p.Timestamp)
	putInt64(int64(p.Flags))
	putString(p.DataType)
	putString(p.Name)
	putString(p.Value)
	for _, l := range p.Linkages {
		h.Write(l[:])
	}
	h.Write(p.Previous[:])

	var g GUID
	copy(g[:], h.Sum(nil))
	return g
}

// randGUID returns a GUID filled from crypto/rand without the uuid
// package's clock dependency. Nothing in the module calls it.
func randGUID() GUID {
	var g GUID
	_, _ = rand.Read(g[:])
	return g
}

// Linkage names one of the four typed reference slots a primitive
// carries.
type Linkage int

const (
	Left Linkage = iota
	Right
	TypeGuid
	Scope
	numLinkages
)

func (l Linkage) String() string {
	switch l {
	case Left:
		return "left"
	case Right:
		return "right"
	case TypeGuid:
		return "typeguid"
	case Scope:
		return "scope"
	default:
		return fmt.Sprintf("linkage(%d)", int(l))
	}
}

// ParseLinkage maps a wire keyword to a Linkage.
func ParseLinkage(s string) (Linkage, bool) {
	switch s {
	case "left":
		return Left, true
	case "right":
		return Right, true
	case "typeguid":
		return TypeGuid, true
	case "scope":
		return Scope, true
	default:
		return 0, false
	}
}

// Flags are the primitive flag bits.
type Flags uint8

const (
	FlagLive Flags = 1 << iota
	FlagArchival
	FlagTxStart
)

// Primitive is the immutable record appended to the store. Once
// appended it never changes; a "new version" is a distinct Primitive
// whose Previous field names its predecessor.
type Primitive struct {
	GUID      GUID
	LocalID   ID // monotonic insertion order, the iterator ordering key
	Timestamp int64 // microseconds since epoch
	DataType  string
	Flags     Flags

	Linkages [numLinkages]GUID // Null entry means "not linked"

	Name  string
	Value string

	Previous GUID // Null for an original (non-versioned) primitive
}

// Linkage returns the GUID primitive links to via l, or the zero
// GUID if it has no such linkage.
func (p *Primitive) Linkage(l Linkage) GUID { return p.Linkages[l] }

// Live reports whether the live flag is set.
func (p *Primitive) Live() bool { return p.Flags&FlagLive != 0 }

// Archival reports whether the archival flag is set.
func (p *Primitive) Archival() bool { return p.Flags&FlagArchival != 0 }

// TxStart reports whether this primitive opened the transaction that
// produced it: the first write of a request sets a tx_start flag.
func (p *Primitive) TxStart() bool { return p.Flags&FlagTxStart != 0 }

// IsNewVersion reports whether p carries a predecessor.
func (p *Primitive) IsNewVersion() bool { return !p.Previous.IsNull() }
