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

// Package read implements the read engine: the set frame that drives
// one constraint's iterator and the one frame that verifies a single
// candidate primitive, recurses into subconstraints, binds variables,
// and formats the constraint's result pattern.
//
// Every exported entry point takes a store.Store and a *session.Request
// and returns a pattern.Value shaped by the constraint's ResultFrame;
// callers (the wire-level request handler, or a write engine building
// a key/unique cluster's duplicate-as-read) drive cursors and pagesize
// bounds through the same path.
package read

import (
	"context"

	"golang.org/x/exp/slices"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
	"github.com/graphd/graphd/internal/wire"
)

// env bundles the collaborators and read-only request state threaded
// through the whole set/one frame recursion for one request.
type env struct {
	ctx   context.Context
	store store.Store
	req   *session.Request
	a     *constraint.Arena
	slots int // total local-variable slots, sized once for the whole arena
}

// Evaluate runs root as a top-level read request, returning the
// set-level value tuple (count/cursor/list, per root's ResultFrame)
// its set frame produces. cursor, if non-empty, resumes a previous
// page of the same request (the caller is expected to have re-parsed
// it with the same constraint tree).
func Evaluate(ctx context.Context, st store.Store, req *session.Request, a *constraint.Arena, root constraint.ID, cursor string) (pattern.Value, error) {
	c := a.Get(root)
	if c == nil {
		return pattern.Value{}, graphderr.Semanticsf("read: no such constraint")
	}
	e := &env{ctx: ctx, store: st, req: req, a: a, slots: countSlots(a)}
	budget := req.Budget()
	before := budget.Remaining

	resumeOffset := 0
	if cursor != "" {
		cur, err := wire.DecodeCursor(cursor)
		if err != nil {
			return pattern.Value{}, graphderr.Syntaxf("read: %v", err)
		}
		if c.SortRoot != nil {
			resumeOffset = int(cur.SortOffset)
		} else {
			resumeOffset = int(cur.Offset)
		}
	}

	orMap := NewOrMap(countBranches(a))
	res, err := evalSet(e, c, nil, orMap, budget, resumeOffset)
	if chErr := req.Charge(budget, before); chErr != nil && err == nil {
		err = chErr
	}
	if err != nil {
		return pattern.Value{}, err
	}
	return formatSet(c, res), nil
}

// countSlots computes the total number of local-variable slots
// referenced by Assignments anywhere in the arena, so a fresh Locals
// array can be sized once per top-level candidate without a second
// tree walk at evaluation time.
func countSlots(a *constraint.Arena) int {
	max := -1
	for i := 0; i < a.Len(); i++ {
		c := a.Get(constraint.ID(i))
		for _, asg := range c.Assignments {
			if asg.Slot > max {
				max = asg.Slot
			}
		}
	}
	return max + 1
}

// countBranches computes the number of distinct or-branch indices in
// the arena, to size the OrMap once per request.
func countBranches(a *constraint.Arena) int {
	max := -1
	for i := 0; i < a.Len(); i++ {
		c := a.Get(constraint.ID(i))
		for _, b := range c.OrBranches {
			if b.Index > max {
				max = b.Index
			}
		}
	}
	return max + 1
}

// sortIDsAscending is a small helper shared by plan.go's base-iterator
// builders: every Fixed iterator this package builds from a store
// lookup must hand Fixed an already-sorted slice.
func sortIDsAscending(ids []iterator.ID) {
	slices.Sort(ids)
}
