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

package write

import (
	"context"
	"time"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/store"
)

// aligner runs key_align, the bottom-up insert phase: for every
// constraint it decides whether to reuse an already-matched
// primitive, write a new version of it, or create one from scratch,
// resolving each constraint's linkage array from its already-aligned
// "I am your l" children before the constraint itself is written, and
// pushing its own resolved GUID down into "you are my l" children
// afterward.
type aligner struct {
	ctx       context.Context
	store     store.Store
	bootstrap *Bootstrap

	keyMatches map[constraint.ID]primitive.GUID // from key-cluster matching
	guids      map[constraint.ID]primitive.GUID // final resolved GUID per constraint
	txStarted  bool
}

// newAligner builds an aligner over a's tree, seeded with the GUIDs
// key-cluster matching already resolved.
func newAligner(ctx context.Context, st store.Store, bootstrap *Bootstrap, keyMatches map[constraint.ID]primitive.GUID) *aligner {
	return &aligner{
		ctx:        ctx,
		store:      st,
		bootstrap:  bootstrap,
		keyMatches: keyMatches,
		guids:      map[constraint.ID]primitive.GUID{},
	}
}

// align resolves id's GUID (recursing into its "I am your l" children
// first) and returns it. inherited carries linkage values an ancestor
// is forcing onto id (the "you are my l" direction), keyed by which
// linkage slot receives the ancestor's GUID.
func (al *aligner) align(a *constraint.Arena, id constraint.ID, inherited map[primitive.Linkage]primitive.GUID) (primitive.GUID, error) {
	c := a.Get(id)

	var linkages [4]primitive.GUID
	for l, g := range inherited {
		linkages[l] = g
	}
	for _, chID := range c.Children {
		ch := a.Get(chID)
		if ch.HasLinkageToParent && ch.IAmLinkage {
			g, err := al.align(a, chID, nil)
			if err != nil {
				return primitive.Null, err
			}
			linkages[ch.LinkageToParent] = g
		}
	}
	for l := 0; l < 4; l++ {
		if !linkages[l].IsNull() {
			continue
		}
		if set, ok := firstIncludeSingle(c.LinkageGUID[l]); ok {
			linkages[l] = set
		}
	}
	if linkages[primitive.TypeGuid].IsNull() {
		switch {
		case len(c.TypeNames) > 0:
			g, _, err := al.bootstrap.Resolve(al.ctx, c.TypeNames[0], true)
			if err != nil {
				return primitive.Null, err
			}
			linkages[primitive.TypeGuid] = g
		case len(c.TypeGUIDs) > 0:
			linkages[primitive.TypeGuid] = c.TypeGUIDs[0]
		}
	}

	name, _ := firstEqOperand(c.Name)
	value, _ := firstEqOperand(c.Value)
	ts := time.Now().UnixMicro()
	if tsStr, ok := firstEqOperand(c.Timestamp); ok {
		ts = parseDecimal(tsStr)
	}

	existing, hasExisting := al.keyMatches[id]
	var guid primitive.GUID
	var err error
	switch {
	case hasExisting && (c.KeyMask == 0 || al.unchanged(existing, name, value, c.DataType, linkages)):
		guid = existing
	case hasExisting:
		guid, err = al.write(name, value, c.DataType, ts, linkages, existing)
	default:
		guid, err = al.write(name, value, c.DataType, ts, linkages, primitive.Null)
	}
	if err != nil {
		return primitive.Null, err
	}
	al.guids[id] = guid

	for _, chID := range c.Children {
		ch := a.Get(chID)
		switch {
		case ch.HasLinkageToParent && !ch.IAmLinkage:
			if _, err := al.align(a, chID, map[primitive.Linkage]primitive.GUID{ch.LinkageToParent: guid}); err != nil {
				return primitive.Null, err
			}
		case !ch.HasLinkageToParent:
			if _, err := al.align(a, chID, nil); err != nil {
				return primitive.Null, err
			}
		}
	}
	return guid, nil
}

// unchanged reports whether the stored primitive existing already has
// the name/value/datatype/linkages this constraint wants, i.e. a
// reuse (rather than a version) is safe.
func (al *aligner) unchanged(existing primitive.GUID, name, value, datatype string, linkages [4]primitive.GUID) bool {
	p, ok, err := al.store.ByGUID(al.ctx, existing)
	if err != nil || !ok {
		return false
	}
	if p.Name != name || p.Value != value || p.DataType != datatype {
		return false
	}
	for l := 0; l < 4; l++ {
		if !linkages[l].IsNull() && linkages[l] != p.Linkages[l] {
			return false
		}
	}
	return true
}

// write allocates a new primitive (prev, if non-null, makes it a new
// version) and commits it, tagging the first write of the whole
// request with tx_start.
func (al *aligner) write(name, value, datatype string, ts int64, linkages [4]primitive.GUID, prev primitive.GUID) (primitive.GUID, error) {
	p := &primitive.Primitive{
		Name:      name,
		Value:     value,
		DataType:  datatype,
		Timestamp: ts,
		Flags:     primitive.FlagLive,
		Linkages:  linkages,
		Previous:  prev,
	}
	if !al.txStarted {
		p.Flags |= primitive.FlagTxStart
		al.txStarted = true
	}
	id, guid, err := al.store.Alloc(al.ctx, p)
	if err != nil {
		return primitive.Null, graphderr.Systemf("write: %v", err)
	}
	if err := al.store.AllocCommit(al.ctx, id); err != nil {
		return primitive.Null, graphderr.Systemf("write: %v", err)
	}
	return guid, nil
}

// formatNode applies c's one-level result pattern (the same
// pattern.Evaluate the read engine uses) against the GUID align
// resolved for it and its children's formatted tuples, falling back
// to a bare guid value when a constraint carries no result pattern of
// its own (true of most interior write nodes, which exist only to be
// linked, not reported).
func (al *aligner) formatNode(a *constraint.Arena, id constraint.ID) (pattern.Value, error) {
	c := a.Get(id)
	contents := make([][]pattern.Value, len(c.Children))
	for i, chID := range c.Children {
		v, err := al.formatNode(a, chID)
		if err != nil {
			return pattern.Value{}, err
		}
		contents[i] = []pattern.Value{v}
	}
	guid := al.guids[id]
	if c.ResultFrame == nil || c.ResultFrame.OneLevel == nil {
		return pattern.Value{Kind: pattern.Guid, GUID: guid}, nil
	}
	p, ok, err := al.store.ByGUID(al.ctx, guid)
	if err != nil {
		return pattern.Value{}, graphderr.Systemf("write: %v", err)
	}
	if !ok {
		p = &primitive.Primitive{GUID: guid}
	}
	ctx := &pattern.Context{
		Primitive:    p,
		Contents:     contents,
		OrActive:     func(int) bool { return true },
		ActiveBranch: -1,
	}
	return pattern.Evaluate(c.ResultFrame.OneLevel, ctx)
}

func firstIncludeSingle(sets []constraint.GuidSet) (primitive.GUID, bool) {
	for _, s := range sets {
		if s.Kind == constraint.GuidInclude && len(s.GUIDs) == 1 {
			return s.GUIDs[0], true
		}
	}
	return primitive.Null, false
}

func firstEqOperand(clauses []constraint.Clause) (string, bool) {
	for _, cl := range clauses {
		if cl.Op == constraint.Eq {
			return cl.Operand, true
		}
	}
	return "", false
}

func parseDecimal(s string) int64 {
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
