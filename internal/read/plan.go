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
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/store"
)

// planIterator chooses c's base iterator: enumeration by the linkage
// connecting it to an already-matched parent primitive when one is
// supplied, or otherwise by whichever explicit guid=/linkage=/name=/
// value= equality constraint the constraint carries. Every base
// iterator is drained eagerly into a sorted iterator.Fixed: the store
// contract's IDIterator is a plain sequential cursor with none of
// Find/Check/Freeze, and draining once up front is simpler than making
// every candidate set budget-aware for a store whose real index scans
// are already cheap.
func planIterator(e *env, c *constraint.Constraint, parent *primitive.Primitive) (iterator.Iterator, error) {
	if c.HasLinkageToParent && parent != nil {
		if c.IAmLinkage {
			g := parent.Linkage(c.LinkageToParent)
			if g.IsNull() {
				return iterator.NewFixed(nil, true), nil
			}
			id, ok, err := resolveGUID(e, g, c.Generation)
			if err != nil {
				return nil, err
			}
			if !ok {
				return iterator.NewFixed(nil, true), nil
			}
			return iterator.NewFixed([]iterator.ID{id}, true), nil
		}
		if len(c.TypeGUIDs) == 1 {
			it, ok, err := e.store.ByLinkageType(e.ctx, c.LinkageToParent, parent.GUID, c.TypeGUIDs[0])
			if err != nil {
				return nil, graphderr.Systemf("read: %v", err)
			}
			if !ok {
				return iterator.NewFixed(nil, true), nil
			}
			return drain(e, it)
		}
		it, err := e.store.ByLinkage(e.ctx, c.LinkageToParent, parent.GUID)
		if err != nil {
			return nil, graphderr.Systemf("read: %v", err)
		}
		return drain(e, it)
	}

	if set, ok := firstInclude(c.GUID); ok {
		var ids []iterator.ID
		for _, g := range set.GUIDs {
			id, ok, err := resolveGUID(e, g, c.Generation)
			if err != nil {
				return nil, err
			}
			if ok {
				ids = append(ids, id)
			}
		}
		sortIDsAscending(ids)
		return iterator.NewFixed(ids, true), nil
	}

	for l := 0; l < 4; l++ {
		set, ok := firstInclude(c.LinkageGUID[l])
		if !ok || len(set.GUIDs) == 0 {
			continue
		}
		target := set.GUIDs[0]
		linkage := primitive.Linkage(l)
		if typeset, ok2 := firstInclude(c.LinkageGUID[primitive.TypeGuid]); ok2 && len(typeset.GUIDs) == 1 && linkage != primitive.TypeGuid {
			it, ok3, err := e.store.ByLinkageType(e.ctx, linkage, target, typeset.GUIDs[0])
			if err != nil {
				return nil, graphderr.Systemf("read: %v", err)
			}
			if !ok3 {
				return iterator.NewFixed(nil, true), nil
			}
			return drain(e, it)
		}
		it, err := e.store.ByLinkage(e.ctx, linkage, target)
		if err != nil {
			return nil, graphderr.Systemf("read: %v", err)
		}
		return drain(e, it)
	}

	if name, ok := firstEq(c.Name); ok {
		it, err := e.store.ByNameHash(e.ctx, name)
		if err != nil {
			return nil, graphderr.Systemf("read: %v", err)
		}
		return drain(e, it)
	}
	if value, ok := firstEq(c.Value); ok {
		it, err := e.store.ByValueHash(e.ctx, value)
		if err != nil {
			return nil, graphderr.Systemf("read: %v", err)
		}
		return drain(e, it)
	}

	return nil, graphderr.Semanticsf("constraint has no enumerable base (no guid/linkage/name/value equality)")
}

func drain(e *env, it store.IDIterator) (iterator.Iterator, error) {
	var ids []iterator.ID
	for {
		id, ok, err := it.Next(e.ctx)
		if err != nil {
			return nil, graphderr.Systemf("read: %v", err)
		}
		if !ok {
			break
		}
		ids = append(ids, iterator.ID(id))
	}
	sortIDsAscending(ids)
	return iterator.NewFixed(ids, true), nil
}

func resolveGUID(e *env, g primitive.GUID, gen constraint.Generation) (iterator.ID, bool, error) {
	if gen == constraint.GenNewest {
		id, ok, err := e.store.Newest(e.ctx, g)
		if err != nil {
			return 0, false, graphderr.Systemf("read: %v", err)
		}
		return iterator.ID(id), ok, nil
	}
	p, ok, err := e.store.ByGUID(e.ctx, g)
	if err != nil {
		return 0, false, graphderr.Systemf("read: %v", err)
	}
	if !ok {
		return 0, false, nil
	}
	return iterator.ID(p.LocalID), true, nil
}

func firstInclude(sets []constraint.GuidSet) (constraint.GuidSet, bool) {
	for _, s := range sets {
		if s.Kind == constraint.GuidInclude && len(s.GUIDs) > 0 {
			return s, true
		}
	}
	return constraint.GuidSet{}, false
}

func firstEq(clauses []constraint.Clause) (string, bool) {
	for _, cl := range clauses {
		if cl.Op == constraint.Eq {
			return cl.Operand, true
		}
	}
	return "", false
}
