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

// Without is the set-difference iterator: every id the producer
// yields that the checker does not contain. It retains the
// producer's ordering.
type Without struct {
	Producer Iterator
	Checker  Iterator
}

// NewWithout builds the difference producer \ checker.
func NewWithout(producer, checker Iterator) *Without {
	return &Without{Producer: producer, Checker: checker}
}

func (w *Without) Next(b *Budget) (ID, Signal, error) {
	for {
		id, sig, err := w.Producer.Next(b)
		if err != nil || sig != Ready {
			return id, sig, err
		}
		csig, err := w.Checker.Check(id, b)
		if err != nil {
			return 0, Ready, err
		}
		if csig == More {
			return 0, More, nil
		}
		if csig == EOF { // checker says "not present" -> keep it
			return id, Ready, nil
		}
		// checker says present: skip and keep pulling
	}
}

func (w *Without) Find(id ID, b *Budget) (ID, Signal, error) {
	for {
		pid, sig, err := w.Producer.Find(id, b)
		if err != nil || sig != Ready {
			return pid, sig, err
		}
		csig, err := w.Checker.Check(pid, b)
		if err != nil {
			return 0, Ready, err
		}
		if csig == More {
			return 0, More, nil
		}
		if csig == EOF {
			return pid, Ready, nil
		}
		if w.Producer.Forward() {
			id = pid + 1
		} else {
			id = pid - 1
		}
	}
}

func (w *Without) Check(id ID, b *Budget) (Signal, error) {
	psig, err := w.Producer.Check(id, b)
	if err != nil || psig != Ready {
		return psig, err
	}
	csig, err := w.Checker.Check(id, b)
	if err != nil {
		return 0, err
	}
	if csig == More {
		return More, nil
	}
	if csig == EOF {
		return Ready, nil
	}
	return EOF, nil
}

func (w *Without) Statistics(b *Budget) (Cost, Signal, error) {
	pc, sig, err := w.Producer.Statistics(b)
	if err != nil || sig != Ready {
		return Cost{}, sig, err
	}
	cc, sig, err := w.Checker.Statistics(b)
	if err != nil || sig != Ready {
		return Cost{}, sig, err
	}
	return Cost{
		CheckCost: pc.CheckCost + cc.CheckCost,
		FindCost:  pc.FindCost + cc.CheckCost,
		NextCost:  pc.NextCost + cc.CheckCost,
		N:         pc.N, // upper bound: cannot exceed producer's count
	}, Ready, nil
}

func (w *Without) Clone() Iterator {
	return &Without{Producer: w.Producer.Clone(), Checker: w.Checker.Clone()}
}

func (w *Without) Reset() {
	w.Producer.Reset()
	w.Checker.Reset()
}

func (w *Without) PrimitiveSummary() Summary { return w.Producer.PrimitiveSummary() }

func (w *Without) Beyond(key ID) bool { return w.Producer.Beyond(key) }

func (w *Without) RangeEstimate() RangeEstimate { return w.Producer.RangeEstimate() }

func (w *Without) Sorted() bool  { return w.Producer.Sorted() }
func (w *Without) Forward() bool { return w.Producer.Forward() }

const tagWithout = 2

func (w *Without) Freeze(flags FreezeFlags) ([]byte, error) {
	pf, err := w.Producer.Freeze(flags)
	if err != nil {
		return nil, err
	}
	cf, err := w.Checker.Freeze(flags)
	if err != nil {
		return nil, err
	}
	out := []byte{tagWithout}
	out = binary.LittleEndian.AppendUint64(out, uint64(len(pf)))
	out = append(out, pf...)
	out = append(out, cf...)
	return out, nil
}

func thawWithout(flags FreezeFlags, body []byte) (Iterator, error) {
	if len(body) < 8 {
		return nil, errShortCache
	}
	n := binary.LittleEndian.Uint64(body[:8])
	body = body[8:]
	producer, err := Thaw(flags, body[:n])
	if err != nil {
		return nil, err
	}
	checker, err := Thaw(flags, body[n:])
	if err != nil {
		return nil, err
	}
	return &Without{Producer: producer, Checker: checker}, nil
}

func init() { registerThawer(tagWithout, thawWithout) }
