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

package iterator

import "encoding/binary"

// maxVipSample bounds the fallback sampling strategy: sample up to a
// small constant number of results by repeatedly find-bouncing
// between the two inputs.
const maxVipSample = 64

// Vip decorates a sub-iterator to yield primitives with a specific
// linkage pointing at a given GUID source and typeguid T. Sub is
// either a native store-provided VIP index iterator, or a
// synthesized And(linkage-iterator, typeguid-iterator), or (last
// resort) a small Fixed sample built by bouncing Find calls between
// the two inputs.
type Vip struct {
	Sub       Iterator
	LinkageOK bool // true if Sub is a true native VIP index (cheapest Check path)
	checkCost int64
}

// NewVip wraps sub, which the caller has already resolved to one of
// three strategies (native index / intersection / sampled fallback).
func NewVip(sub Iterator, nativeIndex bool) *Vip {
	return &Vip{Sub: sub, LinkageOK: nativeIndex}
}

// SampleVip implements the last-resort fallback strategy: repeatedly
// Find-bounce between linkageIter and typeIter, collecting ids both
// agree on, up to maxVipSample results or EOF on either side.
func SampleVip(linkageIter, typeIter Iterator, b *Budget) (*Fixed, error) {
	var out []ID
	cur := ID(0)
	for len(out) < maxVipSample {
		lid, lsig, err := linkageIter.Find(cur, b)
		if err != nil {
			return nil, err
		}
		if lsig != Ready {
			break
		}
		tid, tsig, err := typeIter.Find(lid, b)
		if err != nil {
			return nil, err
		}
		if tsig != Ready {
			break
		}
		if tid == lid {
			out = append(out, lid)
			cur = lid + 1
			continue
		}
		cur = tid
	}
	return NewFixed(out, true), nil
}

func (v *Vip) Next(b *Budget) (ID, Signal, error) { return v.Sub.Next(b) }

func (v *Vip) Find(id ID, b *Budget) (ID, Signal, error) { return v.Sub.Find(id, b) }

// Check always delegates to the sub-iterator's Check. It does not
// short-circuit on the iterator's range bound and does not compare
// the sub-iterator's check cost against a direct primitive read.
func (v *Vip) Check(id ID, b *Budget) (Signal, error) {
	if !v.Sub.Beyond(id) || v.Sub.RangeEstimate().N == 0 {
		// fall through: range bound doesn't let us short-circuit
	}
	return v.Sub.Check(id, b)
}

func (v *Vip) Statistics(b *Budget) (Cost, Signal, error) {
	c, sig, err := v.Sub.Statistics(b)
	v.checkCost = c.CheckCost
	return c, sig, err
}

func (v *Vip) Clone() Iterator { return &Vip{Sub: v.Sub.Clone(), LinkageOK: v.LinkageOK} }

func (v *Vip) Reset() { v.Sub.Reset() }

func (v *Vip) PrimitiveSummary() Summary { return v.Sub.PrimitiveSummary() }

func (v *Vip) Beyond(key ID) bool { return v.Sub.Beyond(key) }

func (v *Vip) RangeEstimate() RangeEstimate { return v.Sub.RangeEstimate() }

func (v *Vip) Sorted() bool  { return v.Sub.Sorted() }
func (v *Vip) Forward() bool { return v.Sub.Forward() }

const tagVip = 4

func (v *Vip) Freeze(flags FreezeFlags) ([]byte, error) {
	sf, err := v.Sub.Freeze(flags)
	if err != nil {
		return nil, err
	}
	out := []byte{tagVip}
	if v.LinkageOK {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = binary.LittleEndian.AppendUint64(out, uint64(len(sf)))
	out = append(out, sf...)
	return out, nil
}

func thawVip(flags FreezeFlags, body []byte) (Iterator, error) {
	if len(body) < 9 {
		return nil, errShortCache
	}
	nativeIndex := body[0] == 1
	n := binary.LittleEndian.Uint64(body[1:9])
	sub, err := Thaw(flags, body[9:9+n])
	if err != nil {
		return nil, err
	}
	return &Vip{Sub: sub, LinkageOK: nativeIndex}, nil
}

func init() { registerThawer(tagVip, thawVip) }
