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

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/read"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
)

// maskFunc selects which of a constraint's two cluster bitmasks
// (key= or unique=) this pass is walking.
type maskFunc func(*constraint.Constraint) uint32

func keyMaskOf(c *constraint.Constraint) uint32    { return c.KeyMask }
func uniqueMaskOf(c *constraint.Constraint) uint32 { return c.UniqueMask }

// linkageFieldBit maps a structural linkage direction to the
// key=/unique= bitmask bit that names it, so a child's connecting
// linkage can be tested against its parent's mask.
func linkageFieldBit(l primitive.Linkage) uint32 {
	switch l {
	case primitive.Left:
		return constraint.FieldLeft
	case primitive.Right:
		return constraint.FieldRight
	case primitive.TypeGuid:
		return constraint.FieldTypeGuidLinkage
	case primitive.Scope:
		return constraint.FieldScope
	default:
		return 0
	}
}

// isClusterRoot reports whether c starts a maximal subtree of
// constraints sharing a non-empty mask, joined by linkages that mask
// itself names: c's own mask is non-empty, and either c has no parent
// or the parent's mask doesn't claim the connecting linkage.
func isClusterRoot(a *constraint.Arena, c *constraint.Constraint, mask maskFunc) bool {
	if mask(c) == 0 {
		return false
	}
	parent := a.Get(c.Parent)
	if parent == nil || mask(parent) == 0 {
		return true
	}
	return mask(parent)&linkageFieldBit(c.LinkageToParent) == 0
}

// clusterMember reports whether child belongs to parent's cluster:
// child's own mask is non-empty and parent's mask claims the
// linkage connecting them.
func clusterMember(parent, child *constraint.Constraint, mask maskFunc) bool {
	return mask(child) != 0 && mask(parent)&linkageFieldBit(child.LinkageToParent) != 0
}

// buildDuplicate constructs an independent read-only arena mirroring
// the masked fields of the cluster rooted at orig, per
// annotate_keyed_push: only the fields orig's mask names are copied,
// live/newest/pagesize/countlimit/resultpagesize/archival are forced
// to the "does exactly one primitive already exist" shape, and the
// result pattern is (guid (contents...)) so the match can be walked
// back in lock-step with the original tree. A root-level explicit
// guid= clause is interpreted as "the predecessor being superseded by
// a new version" and is excluded rather than required, so the
// duplicate read finds *other* conflicting primitives instead of
// simply re-finding the primitive the caller already knows about.
func buildDuplicate(a *constraint.Arena, orig constraint.ID, mask maskFunc) (*constraint.Arena, constraint.ID) {
	dup := constraint.NewArena()
	var build func(id constraint.ID, root bool) constraint.ID
	build = func(id constraint.ID, root bool) constraint.ID {
		c := a.Get(id)
		m := mask(c)
		d := dup.New()
		if m&constraint.FieldType != 0 {
			d.TypeNames = append([]string(nil), c.TypeNames...)
		}
		if m&constraint.FieldName != 0 {
			d.Name = append([]constraint.Clause(nil), c.Name...)
		}
		if m&constraint.FieldValue != 0 {
			d.Value = append([]constraint.Clause(nil), c.Value...)
		}
		if m&constraint.FieldDatatype != 0 {
			d.DataType = c.DataType
		}
		if m&constraint.FieldTimestamp != 0 {
			d.Timestamp = append([]constraint.Clause(nil), c.Timestamp...)
		}
		if root && len(c.GUID) > 0 {
			var excl []primitive.GUID
			for _, s := range c.GUID {
				if s.Kind == constraint.GuidInclude {
					excl = append(excl, s.GUIDs...)
				}
			}
			if len(excl) > 0 {
				d.GUID = []constraint.GuidSet{{Kind: constraint.GuidExclude, GUIDs: excl}}
			}
		}
		d.Live = constraint.True
		d.Generation = constraint.GenAny
		d.Archival = constraint.DontCare
		d.Pagesize, d.Countlimit, d.ResultPagesize = 1, 1, 1

		var childIDs []constraint.ID
		for _, chID := range c.Children {
			ch := a.Get(chID)
			if !clusterMember(c, ch, mask) {
				continue
			}
			dch := build(chID, false)
			dchC := dup.Get(dch)
			dchC.Parent = d.ID()
			dchC.HasLinkageToParent = true
			dchC.LinkageToParent = ch.LinkageToParent
			dchC.IAmLinkage = ch.IAmLinkage
			childIDs = append(childIDs, dch)
		}
		d.Children = childIDs

		contents := make([]*pattern.Pattern, len(childIDs))
		for i := range childIDs {
			contents[i] = pattern.NewContents(i)
		}
		d.ResultFrame = pattern.NewFrame(nil, pattern.NewList(pattern.Simple(pattern.Guid), pattern.NewList(contents...)))
		return d.ID()
	}
	root := build(orig, true)
	return dup, root
}

// annotateMatch walks a duplicate cluster's matched result tuple in
// lock-step with the original tree, recording each original
// constraint's matched GUID into out.
func annotateMatch(a *constraint.Arena, id constraint.ID, mask maskFunc, tuple pattern.Value, out map[constraint.ID]primitive.GUID) {
	if len(tuple.List) < 2 {
		return
	}
	out[id] = tuple.List[0].GUID
	childResults := tuple.List[1].List
	c := a.Get(id)
	i := 0
	for _, chID := range c.Children {
		ch := a.Get(chID)
		if !clusterMember(c, ch, mask) {
			continue
		}
		if i >= len(childResults) {
			break
		}
		contentsVal := childResults[i]
		i++
		if len(contentsVal.List) == 0 {
			continue
		}
		annotateMatch(a, chID, mask, contentsVal.List[0], out)
	}
}

// processClusters walks the whole tree pre-order, duplicating every
// cluster root's subtree as an internal read request and recording
// each match (key clusters) or rejecting the write outright (unique
// clusters, any match is a UNIQUE_EXISTS violation). Once a root has
// been handled its entire cluster is skipped on the way down, since
// buildDuplicate already covers it.
func processClusters(ctx context.Context, st store.Store, req *session.Request, bootstrap *Bootstrap, a *constraint.Arena, root constraint.ID, mask maskFunc, rejectOnMatch bool) (map[constraint.ID]primitive.GUID, error) {
	out := map[constraint.ID]primitive.GUID{}
	inCluster := map[constraint.ID]bool{}
	var markCluster func(id constraint.ID)
	markCluster = func(id constraint.ID) {
		inCluster[id] = true
		c := a.Get(id)
		for _, chID := range c.Children {
			if clusterMember(c, a.Get(chID), mask) {
				markCluster(chID)
			}
		}
	}
	var walk func(id constraint.ID) error
	walk = func(id constraint.ID) error {
		c := a.Get(id)
		if c == nil {
			return nil
		}
		if !inCluster[id] && isClusterRoot(a, c, mask) {
			markCluster(id)
			dupArena, dupRoot := buildDuplicate(a, id, mask)
			if err := constraint.Complete(ctx, dupArena, dupRoot, constraint.Options{Kind: constraint.Read, Types: bootstrap}); err != nil {
				return err
			}
			v, err := read.Evaluate(ctx, st, req, dupArena, dupRoot, "")
			if err != nil {
				return err
			}
			if len(v.List) > 0 {
				if rejectOnMatch {
					return graphderr.UniqueExistsf("write: unique cluster already has a matching primitive")
				}
				annotateMatch(a, id, mask, v.List[0], out)
			}
		}
		for _, chID := range c.Children {
			if err := walk(chID); err != nil {
				return err
			}
		}
		return nil
	}
	return out, walk(root)
}
