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
)

// oneFrame evaluates constraint c against a single already-loaded
// candidate primitive p: intrinsic filters not already enforced by the
// base iterator, subconstraint recursion (collecting each into the
// contents sequence at its position), variable assignment, and finally
// the constraint's one-level result pattern. locals is shared by
// reference across the whole descent from the top-level candidate that
// led here, so an ancestor's assignment is visible to every descendant
// — and, per "first match wins", never overwritten once set.
func oneFrame(e *env, c *constraint.Constraint, p *primitive.Primitive, orMap *OrMap, locals pattern.Locals, budget *iterator.Budget) (bool, pattern.Value, error) {
	if err := e.ctx.Err(); err != nil {
		return false, pattern.Value{}, err
	}
	if c.False {
		return false, pattern.Value{}, nil
	}
	if !intrinsicsMatch(c, p, e) {
		return false, pattern.Value{}, nil
	}

	bindAssignments(c, p, locals)

	contents := make([][]pattern.Value, len(c.Children)+len(c.OrBranches))
	for i, chID := range c.Children {
		ch := e.a.Get(chID)
		sub, err := evalSet(e, ch, p, orMap, budget, 0)
		if err != nil {
			return false, pattern.Value{}, err
		}
		contents[i] = sub.Values
	}

	activeBranch := -1
	for i, branch := range c.OrBranches {
		slot := len(c.Children) + i
		matched, vals, err := evalOrBranch(e, c, branch, p, orMap, locals, budget)
		if err != nil {
			return false, pattern.Value{}, err
		}
		contents[slot] = vals
		if matched {
			activeBranch = i
		}
	}

	if c.ResultFrame == nil || c.ResultFrame.OneLevel == nil {
		return true, pattern.Value{}, nil
	}
	ctx := &pattern.Context{
		Primitive:    p,
		Locals:       locals,
		Contents:     contents,
		OrActive:     orMap.Viable,
		ActiveBranch: activeBranch,
	}
	v, err := pattern.Evaluate(c.ResultFrame.OneLevel, ctx)
	return true, v, err
}

// evalOrBranch runs one constraint's or-branch entry: the head
// alternative if still active, falling through to the tail once the
// head has failed, per graphd_read_or_fail/graphd_read_or_match_subconstraints
// in the read engine's or-handling.
func evalOrBranch(e *env, owner *constraint.Constraint, branch constraint.OrBranch, p *primitive.Primitive, orMap *OrMap, locals pattern.Locals, budget *iterator.Budget) (bool, []pattern.Value, error) {
	if orMap.HeadActive(branch.Index) && branch.Head != constraint.NoID {
		head := e.a.Get(branch.Head)
		sub, err := evalSet(e, head, p, orMap, budget, 0)
		if err != nil {
			return false, nil, err
		}
		if sub.Count > 0 {
			orMap.Succeed(branch.Index)
			return true, sub.Values, nil
		}
		orMap.FailHead(branch.Index, branch.Tail != constraint.NoID)
	}
	if orMap.TailActive(branch.Index) && branch.Tail != constraint.NoID {
		tail := e.a.Get(branch.Tail)
		sub, err := evalSet(e, tail, p, orMap, budget, 0)
		if err != nil {
			return false, nil, err
		}
		if sub.Count > 0 {
			orMap.Succeed(branch.Index)
			return true, sub.Values, nil
		}
		orMap.FailTail(branch.Index)
	}
	return false, nil, nil
}

// bindAssignments fills every slot c.Assignments declares with c's own
// matched GUID, unless that slot was already bound by an earlier match
// at this same constraint (first match wins) or by some other
// constraint already visited in this descent.
func bindAssignments(c *constraint.Constraint, p *primitive.Primitive, locals pattern.Locals) {
	for _, asg := range c.Assignments {
		if asg.Slot < 0 || asg.Slot >= len(locals) {
			continue
		}
		if locals[asg.Slot].Kind == pattern.Guid && !locals[asg.Slot].GUID.IsNull() {
			continue
		}
		locals[asg.Slot] = pattern.Value{Kind: pattern.Guid, GUID: p.GUID}
	}
}

// intrinsicsMatch checks every filter on c that the base iterator does
// not already guarantee: name/value clauses, datatype, live/archival,
// timestamp bounds, the dateline window, generation, and any guid or
// linkage-guid set not consumed as the iterator's own source.
func intrinsicsMatch(c *constraint.Constraint, p *primitive.Primitive, e *env) bool {
	for _, cl := range c.Name {
		if !matchClause(cl, p.Name) {
			return false
		}
	}
	for _, cl := range c.Value {
		if !matchClause(cl, p.Value) {
			return false
		}
	}
	if c.DataType != "" && c.DataType != p.DataType {
		return false
	}
	if c.Live == constraint.True && !p.Live() {
		return false
	}
	if c.Live == constraint.False && p.Live() {
		return false
	}
	if c.Archival == constraint.True && !p.Archival() {
		return false
	}
	if c.Archival == constraint.False && p.Archival() {
		return false
	}
	for _, cl := range c.Timestamp {
		if !matchTimestamp(cl, p.Timestamp) {
			return false
		}
	}
	if c.HasDatelineLo && p.LocalID < c.DatelineLo {
		return false
	}
	if c.HasDatelineHi && p.LocalID > c.DatelineHi {
		return false
	}
	if !e.req.Dateline.Empty() && !e.req.Dateline.Visible(e.store.Instance(), p.LocalID) {
		return false
	}
	for _, set := range c.GUID {
		if !matchGuidSet(set, p.GUID) {
			return false
		}
	}
	for l, sets := range c.LinkageGUID {
		for _, set := range sets {
			if !matchGuidSet(set, p.Linkage(primitive.Linkage(l))) {
				return false
			}
		}
	}
	if c.Generation == constraint.GenNewest {
		newest, ok, err := e.store.Newest(e.ctx, p.GUID)
		if err != nil || !ok || newest != p.LocalID {
			return false
		}
	}
	return true
}

func matchClause(cl constraint.Clause, s string) bool {
	switch cl.Op {
	case constraint.Eq:
		return s == cl.Operand
	case constraint.Ne:
		return s != cl.Operand
	case constraint.Glob:
		g, err := constraint.CompileGlob(cl.Operand)
		if err != nil {
			return false
		}
		return g.Match(s)
	case constraint.Lt:
		return s < cl.Operand
	case constraint.Le:
		return s <= cl.Operand
	case constraint.Gt:
		return s > cl.Operand
	case constraint.Ge:
		return s >= cl.Operand
	default:
		return false
	}
}

func matchTimestamp(cl constraint.Clause, ts int64) bool {
	v := parseTimestampOperand(cl.Operand)
	switch cl.Op {
	case constraint.Eq:
		return ts == v
	case constraint.Ne:
		return ts != v
	case constraint.Lt:
		return ts < v
	case constraint.Le:
		return ts <= v
	case constraint.Gt:
		return ts > v
	case constraint.Ge:
		return ts >= v
	default:
		return true
	}
}

// parseTimestampOperand parses a decimal microsecond clause operand;
// malformed operands (which semantic completion should already have
// rejected) parse as zero.
func parseTimestampOperand(s string) int64 {
	var v int64
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		v = v*10 + int64(r-'0')
	}
	if neg {
		v = -v
	}
	return v
}

func matchGuidSet(set constraint.GuidSet, g primitive.GUID) bool {
	in := false
	for _, cand := range set.GUIDs {
		if cand == g {
			in = true
			break
		}
	}
	switch set.Kind {
	case constraint.GuidInclude, constraint.GuidMatch:
		return in
	case constraint.GuidExclude:
		return !in
	default:
		return true
	}
}
