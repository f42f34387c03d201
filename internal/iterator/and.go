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

// And is the intersection iterator: it chooses the cheapest of its
// sub-iterators as the producer and uses the rest as checkers,
// sharing one Cache across clones so that repeated sampling during
// Statistics (or across suspend/resume) is amortized. This is the
// standard sampled producer/checkers join: pull a candidate from the
// producer, confirm it against every checker, and cache confirmed ids
// so later Find/Check calls (e.g. from a sibling VIP decorator
// probing the same set) can skip re-deriving them.
type And struct {
	subs     []Iterator
	producer int // index into subs chosen as the sampling source
	cache    *Cache
	pos      int // offset into cache.ids of the next id Next() will return
}

// NewAnd builds the intersection of subs. The cheapest sub (by
// NextCost) is chosen as the producer;
// ties keep the first. subs must be nonempty.
func NewAnd(subs []Iterator) *And {
	a := &And{subs: subs, cache: NewCache(true)}
	a.choose()
	return a
}

func (a *And) choose() {
	best := 0
	b := &Budget{Remaining: 1 << 30}
	bestCost, _, _ := a.subs[0].Statistics(b)
	for i := 1; i < len(a.subs); i++ {
		c, _, _ := a.subs[i].Statistics(b)
		if c.NextCost < bestCost.NextCost {
			best, bestCost = i, c
		}
	}
	a.producer = best
}

func (a *And) checkers() []Iterator {
	out := make([]Iterator, 0, len(a.subs)-1)
	for i, s := range a.subs {
		if i != a.producer {
			out = append(out, s)
		}
	}
	return out
}

// confirm pulls candidates from the producer until one passes every
// checker (or the producer is exhausted / budget runs out), caching
// the result.
func (a *And) confirm(b *Budget) (ID, Signal, error) {
	producer := a.subs[a.producer]
	checkers := a.checkers()
	for {
		id, sig, err := producer.Next(b)
		if err != nil || sig != Ready {
			if sig == EOF {
				a.cache.SetEOF()
			}
			return id, sig, err
		}
		ok := true
		for _, c := range checkers {
			csig, err := c.Check(id, b)
			if err != nil {
				return 0, Ready, err
			}
			if csig == More {
				return 0, More, nil
			}
			if csig != Ready {
				ok = false
				break
			}
		}
		if ok {
			a.cache.Add(id, 0)
			return id, Ready, nil
		}
	}
}

func (a *And) Next(b *Budget) (ID, Signal, error) {
	if a.pos < a.cache.Len() {
		id, _ := a.cache.Index(a.pos)
		a.pos++
		return id, Ready, nil
	}
	if a.cache.EOF() {
		return 0, EOF, nil
	}
	id, sig, err := a.confirm(b)
	if sig == Ready {
		a.pos++
	}
	return id, sig, err
}

func (a *And) Find(id ID, b *Budget) (ID, Signal, error) {
	if off, found, ok := a.cache.Search(id); ok {
		a.pos = off + 1
		return found, Ready, nil
	} else if off < a.cache.Len() {
		a.pos = off + 1
		found, _ := a.cache.Index(off)
		return found, Ready, nil
	}
	if a.cache.EOF() {
		return 0, EOF, nil
	}
	// fall through to the producer directly via Find for an
	// exact-or-next match, then confirm.
	producer := a.subs[a.producer]
	checkers := a.checkers()
	cur := id
	for {
		pid, sig, err := producer.Find(cur, b)
		if err != nil || sig != Ready {
			if sig == EOF {
				a.cache.SetEOF()
			}
			return pid, sig, err
		}
		ok := true
		for _, c := range checkers {
			csig, err := c.Check(pid, b)
			if err != nil {
				return 0, Ready, err
			}
			if csig == More {
				return 0, More, nil
			}
			if csig != Ready {
				ok = false
				break
			}
		}
		if ok {
			a.cache.Add(pid, 0)
			a.pos = a.cache.Len()
			return pid, Ready, nil
		}
		if producer.Forward() {
			cur = pid + 1
		} else {
			cur = pid - 1
		}
	}
}

func (a *And) Check(id ID, b *Budget) (Signal, error) {
	if a.cache.Check(id) {
		return Ready, nil
	}
	for i, s := range a.subs {
		_ = i
		sig, err := s.Check(id, b)
		if err != nil {
			return 0, err
		}
		if sig == More {
			return More, nil
		}
		if sig != Ready {
			return EOF, nil
		}
	}
	a.cache.Add(id, 0)
	return Ready, nil
}

func (a *And) Statistics(b *Budget) (Cost, Signal, error) {
	var n int64 = -1
	checkCost := int64(0)
	for _, s := range a.subs {
		c, sig, err := s.Statistics(b)
		if err != nil || sig != Ready {
			return Cost{}, sig, err
		}
		checkCost += c.CheckCost
		if c.N >= 0 && (n < 0 || c.N < n) {
			n = c.N // intersection can never exceed the smallest input
		}
	}
	producerCost, _, _ := a.subs[a.producer].Statistics(b)
	return Cost{
		CheckCost: checkCost,
		FindCost:  producerCost.FindCost + checkCost,
		NextCost:  producerCost.NextCost + checkCost,
		N:         n,
	}, Ready, nil
}

func (a *And) Clone() Iterator {
	clones := make([]Iterator, len(a.subs))
	for i, s := range a.subs {
		clones[i] = s.Clone()
	}
	a.cache.Ref()
	return &And{subs: clones, producer: a.producer, cache: a.cache}
}

func (a *And) Reset() {
	for _, s := range a.subs {
		s.Reset()
	}
	a.pos = 0
}

func (a *And) PrimitiveSummary() Summary {
	merged := Summary{Fixed: map[int][16]byte{}}
	for _, s := range a.subs {
		sub := s.PrimitiveSummary()
		for k, v := range sub.Fixed {
			merged.Fixed[k] = v
		}
	}
	return merged
}

func (a *And) Beyond(key ID) bool { return a.subs[a.producer].Beyond(key) }

func (a *And) RangeEstimate() RangeEstimate { return a.subs[a.producer].RangeEstimate() }

func (a *And) Sorted() bool  { return a.subs[a.producer].Sorted() }
func (a *And) Forward() bool { return a.subs[a.producer].Forward() }

const tagAnd = 3

func (a *And) Freeze(flags FreezeFlags) ([]byte, error) {
	out := []byte{tagAnd}
	out = binary.LittleEndian.AppendUint64(out, uint64(a.producer))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(a.subs)))
	for _, s := range a.subs {
		sf, err := s.Freeze(flags)
		if err != nil {
			return nil, err
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(len(sf)))
		out = append(out, sf...)
	}
	if flags&FreezeState != 0 {
		cf := a.cache.Freeze()
		out = binary.LittleEndian.AppendUint64(out, uint64(len(cf)))
		out = append(out, cf...)
	}
	return out, nil
}

func thawAnd(flags FreezeFlags, body []byte) (Iterator, error) {
	if len(body) < 16 {
		return nil, errShortCache
	}
	producer := int(binary.LittleEndian.Uint64(body[:8]))
	nsubs := binary.LittleEndian.Uint64(body[8:16])
	body = body[16:]
	subs := make([]Iterator, 0, nsubs)
	for i := uint64(0); i < nsubs; i++ {
		if len(body) < 8 {
			return nil, errShortCache
		}
		n := binary.LittleEndian.Uint64(body[:8])
		body = body[8:]
		s, err := Thaw(flags, body[:n])
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
		body = body[n:]
	}
	a := &And{subs: subs, producer: producer, cache: NewCache(true)}
	if flags&FreezeState != 0 && len(body) >= 8 {
		n := binary.LittleEndian.Uint64(body[:8])
		body = body[8 : 8+n]
		c, err := ThawCache(body, true)
		if err == nil {
			a.cache = c
		}
	}
	return a, nil
}

func init() { registerThawer(tagAnd, thawAnd) }
