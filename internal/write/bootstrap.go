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
	"sync"

	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/store"
)

// Bootstrap implements constraint.TypeResolver by storing the type
// system in the graph itself: a ROOT_NAMESPACE node, a HAS_KEY node
// used as the typeguid on every naming link, and a
// Metaweb_Bootstrap_Anchor node whose left/right linkages establish
// ROOT_NAMESPACE and a second BOOTSTRAP_NAMESPACE. A type name is a
// named node reachable from either namespace by a has_key link; the
// first Resolve call of a process creates whichever of these anchor
// primitives don't already exist, in that fixed order.
type Bootstrap struct {
	store store.Store

	mu        sync.Mutex
	ready     bool
	root      primitive.GUID
	hasKey    primitive.GUID
	anchor    primitive.GUID
	namespace primitive.GUID
}

// NewBootstrap wraps st; the bootstrap anchors are created lazily on
// the first Resolve call, not at construction time.
func NewBootstrap(st store.Store) *Bootstrap {
	return &Bootstrap{store: st}
}

// Rollback clears the cached anchor GUIDs, since they may have been
// assigned as part of a bootstrap sequence that is now being aborted;
// the next Resolve call re-derives (or re-creates) them from scratch.
func (b *Bootstrap) Rollback() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = false
	b.root = primitive.Null
	b.hasKey = primitive.Null
	b.anchor = primitive.Null
	b.namespace = primitive.Null
}

func (b *Bootstrap) ensure(ctx context.Context) error {
	if b.ready {
		return nil
	}
	root, err := b.namedAnchor(ctx, "ROOT_NAMESPACE", primitive.Null, primitive.Null, primitive.Null)
	if err != nil {
		return err
	}
	hasKey, err := b.namedAnchor(ctx, "HAS_KEY", primitive.Null, primitive.Null, primitive.Null)
	if err != nil {
		return err
	}
	namespace, err := b.namedAnchor(ctx, "BOOTSTRAP_NAMESPACE", primitive.Null, primitive.Null, primitive.Null)
	if err != nil {
		return err
	}
	anchor, err := b.namedAnchor(ctx, "Metaweb_Bootstrap_Anchor", root, namespace, hasKey)
	if err != nil {
		return err
	}
	b.root, b.hasKey, b.namespace, b.anchor = root, hasKey, namespace, anchor
	b.ready = true
	return nil
}

// namedAnchor finds an existing named node by exact name, or creates
// one with the given left/right/typeguid linkages if none exists.
func (b *Bootstrap) namedAnchor(ctx context.Context, name string, left, right, typeguid primitive.GUID) (primitive.GUID, error) {
	if g, ok, err := b.findNamed(ctx, name); err != nil {
		return primitive.Null, err
	} else if ok {
		return g, nil
	}
	p := &primitive.Primitive{Name: name, Flags: primitive.FlagLive}
	p.Linkages[primitive.Left] = left
	p.Linkages[primitive.Right] = right
	p.Linkages[primitive.TypeGuid] = typeguid
	return b.alloc(ctx, p)
}

func (b *Bootstrap) findNamed(ctx context.Context, name string) (primitive.GUID, bool, error) {
	it, err := b.store.ByNameHash(ctx, name)
	if err != nil {
		return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
	}
	for {
		id, ok, err := it.Next(ctx)
		if err != nil {
			return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
		}
		if !ok {
			return primitive.Null, false, nil
		}
		p, ok, err := b.store.ByLocalID(ctx, id)
		if err != nil {
			return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
		}
		if ok && p.Name == name {
			return p.GUID, true, nil
		}
	}
}

func (b *Bootstrap) alloc(ctx context.Context, p *primitive.Primitive) (primitive.GUID, error) {
	id, guid, err := b.store.Alloc(ctx, p)
	if err != nil {
		return primitive.Null, graphderr.Systemf("bootstrap: %v", err)
	}
	if err := b.store.AllocCommit(ctx, id); err != nil {
		return primitive.Null, graphderr.Systemf("bootstrap: %v", err)
	}
	return guid, nil
}

// Resolve implements constraint.TypeResolver: it walks has_key links
// from either namespace looking for a named node matching name, and -
// for a write request, allowCreate true - mints one under
// ROOT_NAMESPACE if none is found.
func (b *Bootstrap) Resolve(ctx context.Context, name string, allowCreate bool) (primitive.GUID, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensure(ctx); err != nil {
		return primitive.Null, false, err
	}
	for _, ns := range [2]primitive.GUID{b.root, b.namespace} {
		g, ok, err := b.typeGUIDFromName(ctx, ns, name)
		if err != nil {
			return primitive.Null, false, err
		}
		if ok {
			return g, true, nil
		}
	}
	if !allowCreate {
		return primitive.Null, false, nil
	}
	p := &primitive.Primitive{Name: name, Flags: primitive.FlagLive}
	p.Linkages[primitive.Left] = b.root
	p.Linkages[primitive.TypeGuid] = b.hasKey
	g, err := b.alloc(ctx, p)
	if err != nil {
		return primitive.Null, false, err
	}
	return g, true, nil
}

func (b *Bootstrap) typeGUIDFromName(ctx context.Context, namespace primitive.GUID, name string) (primitive.GUID, bool, error) {
	it, ok, err := b.store.ByLinkageType(ctx, primitive.Left, namespace, b.hasKey)
	if err != nil {
		return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
	}
	if !ok {
		return primitive.Null, false, nil
	}
	for {
		id, ok, err := it.Next(ctx)
		if err != nil {
			return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
		}
		if !ok {
			return primitive.Null, false, nil
		}
		p, ok, err := b.store.ByLocalID(ctx, id)
		if err != nil {
			return primitive.Null, false, graphderr.Systemf("bootstrap: %v", err)
		}
		if ok && p.Name == name {
			return p.GUID, true, nil
		}
	}
}

// TypeValueFromGUID is the reverse of Resolve: the type name a
// typeguid was minted from, read straight off the named primitive.
func (b *Bootstrap) TypeValueFromGUID(ctx context.Context, g primitive.GUID) (string, bool, error) {
	p, ok, err := b.store.ByGUID(ctx, g)
	if err != nil {
		return "", false, graphderr.Systemf("bootstrap: %v", err)
	}
	if !ok {
		return "", false, nil
	}
	return p.Name, true, nil
}
