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

package read

import (
	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/sortbuf"
	"github.com/graphd/graphd/internal/wire"
)

// setResult is one constraint's set frame output: the matches produced
// this page, a continuation cursor (empty once the whole set has been
// drained), and whether more remain beyond this page.
type setResult struct {
	Count  int64
	Values []pattern.Value
	Cursor string
	More   bool
}

// sortedItem pairs a matched candidate's formatted tuple with the
// ordering key its sort root names, so the bounded sort buffer can
// order without re-evaluating the one-level pattern.
type sortedItem struct {
	key int64
	val pattern.Value
}

// evalSet is the set frame (grsc): it pulls candidate ids from c's
// base iterator, verifies and formats each via oneFrame, and pages the
// result out at c.Pagesize/c.Countlimit, resuming from resumeOffset
// (the position recovered from an inbound cursor, 0 for a fresh read).
// parent is the already-matched primitive this constraint is a
// subconstraint of, nil at the top level.
func evalSet(e *env, c *constraint.Constraint, parent *primitive.Primitive, orMap *OrMap, budget *iterator.Budget, resumeOffset int) (setResult, error) {
	if err := e.ctx.Err(); err != nil {
		return setResult{}, err
	}
	if c.False {
		return setResult{}, nil
	}

	it, err := planIterator(e, c, parent)
	if err != nil {
		return setResult{}, err
	}

	limit := c.Pagesize
	if c.Countlimit > 0 && c.Countlimit < limit {
		limit = c.Countlimit
	}
	if limit <= 0 {
		limit = 1
	}

	if c.SortRoot != nil {
		return evalSortedSet(e, c, it, orMap, budget, resumeOffset, limit)
	}

	skip := int(c.Start) + resumeOffset
	var out []pattern.Value
	matched := int64(0)
	more := false
	for {
		if err := e.ctx.Err(); err != nil {
			return setResult{}, err
		}
		id, sig, err := it.Next(budget)
		if err != nil {
			return setResult{}, err
		}
		if sig == iterator.More {
			more = true
			break
		}
		if sig == iterator.EOF {
			break
		}
		p, ok, err := e.store.ByLocalID(e.ctx, id)
		if err != nil {
			return setResult{}, err
		}
		if !ok {
			continue
		}
		locals := make(pattern.Locals, e.slots)
		ok, val, err := oneFrame(e, c, p, orMap, locals, budget)
		if err != nil {
			return setResult{}, err
		}
		if !ok {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		matched++
		if int64(len(out)) < limit {
			out = append(out, val)
		}
		if int64(len(out)) >= limit {
			_, peekSig, err := it.Next(budget)
			if err != nil {
				return setResult{}, err
			}
			more = peekSig == iterator.Ready
			break
		}
	}

	res := setResult{Count: matched, Values: out, More: more}
	if more {
		cur := wire.Cursor{Offset: uint64(int(c.Start) + resumeOffset + len(out))}
		res.Cursor = cur.Encode()
	}
	return res, nil
}

// evalSortedSet buffers up to c.Countlimit matches (keyed by the sort
// root's ordering), captures them in ascending order, and pages out
// pagesize items starting at resumeOffset.
func evalSortedSet(e *env, c *constraint.Constraint, it iterator.Iterator, orMap *OrMap, budget *iterator.Budget, resumeOffset int, limit int64) (setResult, error) {
	buf := sortbuf.New(int(c.Countlimit), func(a, b sortedItem) bool { return a.key < b.key })
	byTimestamp := c.SortRoot.Ordering == "timestamp"

	for {
		if err := e.ctx.Err(); err != nil {
			return setResult{}, err
		}
		id, sig, err := it.Next(budget)
		if err != nil {
			return setResult{}, err
		}
		if sig == iterator.More || sig == iterator.EOF {
			break
		}
		p, ok, err := e.store.ByLocalID(e.ctx, id)
		if err != nil {
			return setResult{}, err
		}
		if !ok {
			continue
		}
		locals := make(pattern.Locals, e.slots)
		ok, val, err := oneFrame(e, c, p, orMap, locals, budget)
		if err != nil {
			return setResult{}, err
		}
		if !ok {
			continue
		}
		key := p.LocalID
		if byTimestamp {
			key = p.Timestamp
		}
		buf.Add(sortedItem{key: key, val: val})
	}

	sorted := buf.Capture()
	items := make([]pattern.Value, len(sorted))
	for i, s := range sorted {
		items[i] = s.val
	}
	pg := sortbuf.NewPaginator(items, resumeOffset)
	page, more := pg.Next(int(limit))

	res := setResult{Count: int64(len(items)), Values: page, More: more}
	if more {
		cur := wire.Cursor{SortOffset: uint64(pg.Offset())}
		res.Cursor = cur.Encode()
	}
	return res, nil
}

// formatSet applies c's set-level result pattern to res, substituting
// the set frame's own count/cursor/matches for the Count/Cursor/
// Contents pattern kinds (pattern.Evaluate rejects Count and Cursor
// outright and resolves Contents only from a per-primitive Context's
// Contents - see internal/pattern/eval.go). A constraint with no set-level pattern
// just returns the bare matches list.
func formatSet(c *constraint.Constraint, res setResult) pattern.Value {
	matches := pattern.Value{Kind: pattern.List, List: res.Values}
	if c.ResultFrame == nil || c.ResultFrame.SetLevel == nil {
		return matches
	}
	count := pattern.Value{Kind: pattern.Count, Int: res.Count}
	cursor := pattern.Value{Kind: pattern.Cursor, Str: res.Cursor}
	return evalSetPattern(c.ResultFrame.SetLevel, count, cursor, matches)
}

func evalSetPattern(p *pattern.Pattern, count, cursor, matches pattern.Value) pattern.Value {
	switch p.Kind {
	case pattern.Count:
		return count
	case pattern.Cursor:
		return cursor
	case pattern.List:
		out := make([]pattern.Value, len(p.Children))
		for i, ch := range p.Children {
			out[i] = evalSetPattern(ch, count, cursor, matches)
		}
		return pattern.Value{Kind: pattern.List, List: out}
	case pattern.Literal:
		return pattern.Value{Kind: pattern.Literal, Str: p.Literal}
	default:
		return matches
	}
}
