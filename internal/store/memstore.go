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

package store

import (
	"context"
	"sync"

	"github.com/dchest/siphash"

	"github.com/graphd/graphd/internal/primitive"
)

// Memory is a reference Store backed by in-process slices and maps.
// It is not the persistent engine (that is an external collaborator);
// it exists so the evaluation core's tests, and a single-process
// `graphd` embedded mode, have something concrete to run against. Its
// locking model mirrors the single per-process mutex the core assumes
// the real store provides.
type Memory struct {
	mu sync.Mutex

	instance uint64
	nextID   primitive.ID
	prims    []*primitive.Primitive // index i holds local id i; nil until AllocCommit

	byGUID    map[primitive.GUID]primitive.ID
	byLinkage map[linkageKey][]primitive.ID
	byHash    map[uint64][]primitive.ID

	// newest maps a lineage's original (first-version) GUID to the
	// newest version's local id, updated whenever a primitive names a
	// Previous.
	newest map[primitive.GUID]primitive.ID
	// chainRoot maps every GUID in a lineage to that lineage's
	// original (first-version) GUID, so Newest can be resolved in O(1)
	// regardless of which version's GUID is queried.
	chainRoot map[primitive.GUID]primitive.GUID
	// pending holds primitives between Alloc and AllocCommit.
	pending map[primitive.ID]*primitive.Primitive

	hashKey0, hashKey1 uint64
}

type linkageKey struct {
	l      primitive.Linkage
	target primitive.GUID
	typed  bool
	typeg  primitive.GUID
}

// NewMemory builds an empty store for writer instance id.
func NewMemory(instance uint64) *Memory {
	return &Memory{
		instance:  instance,
		byGUID:    map[primitive.GUID]primitive.ID{},
		byLinkage: map[linkageKey][]primitive.ID{},
		byHash:    map[uint64][]primitive.ID{},
		newest:    map[primitive.GUID]primitive.ID{},
		hashKey0:  0x9ae16a3b2f90404f,
		hashKey1:  0xc2b2ae3d27d4eb4f,
	}
}

func (m *Memory) hash(s string) uint64 {
	return siphash.Hash(m.hashKey0, m.hashKey1, []byte(s))
}

func (m *Memory) Instance() uint64 { return m.instance }

func (m *Memory) ByLocalID(_ context.Context, id primitive.ID) (*primitive.Primitive, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || int(id) >= len(m.prims) || m.prims[id] == nil {
		return nil, false, nil
	}
	return m.prims[id], true, nil
}

func (m *Memory) ByGUID(_ context.Context, g primitive.GUID) (*primitive.Primitive, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byGUID[g]
	if !ok {
		return nil, false, nil
	}
	return m.prims[id], true, nil
}

func (m *Memory) Newest(_ context.Context, g primitive.GUID) (primitive.ID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	root, ok := m.chainRoot[g]
	if !ok {
		root = g
	}
	id, ok := m.newest[root]
	return id, ok, nil
}

type sliceIDIterator struct {
	ids []primitive.ID
	pos int
}

func (it *sliceIDIterator) Next(context.Context) (primitive.ID, bool, error) {
	if it.pos >= len(it.ids) {
		return 0, false, nil
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true, nil
}

func (m *Memory) ByLinkage(_ context.Context, l primitive.Linkage, target primitive.GUID) (IDIterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]primitive.ID{}, m.byLinkage[linkageKey{l: l, target: target}]...)
	return &sliceIDIterator{ids: ids}, nil
}

func (m *Memory) ByLinkageType(_ context.Context, l primitive.Linkage, target, typeguid primitive.GUID) (IDIterator, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]primitive.ID{}, m.byLinkage[linkageKey{l: l, target: target, typed: true, typeg: typeguid}]...)
	return &sliceIDIterator{ids: ids}, true, nil
}

func (m *Memory) ByValueHash(_ context.Context, value string) (IDIterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]primitive.ID{}, m.byHash[m.hash("v:"+value)]...)
	return &sliceIDIterator{ids: ids}, nil
}

func (m *Memory) ByNameHash(_ context.Context, name string) (IDIterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]primitive.ID{}, m.byHash[m.hash("n:"+name)]...)
	return &sliceIDIterator{ids: ids}, nil
}

// Alloc assigns p a fresh local id and (if unset) a content-addressed
// GUID derived from p itself, then stages it invisibly: no
// enumeration or ByLocalID/ByGUID call observes p until
// AllocCommit(id) is called with the returned id.
func (m *Memory) Alloc(_ context.Context, p *primitive.Primitive) (primitive.ID, primitive.GUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	p.LocalID = id
	if p.GUID.IsNull() {
		p.GUID = primitive.ContentGUID(p)
	}
	for len(m.prims) <= int(id) {
		m.prims = append(m.prims, nil)
	}
	m.staged(id, p)
	return id, p.GUID, nil
}

// staged holds a pending primitive in a side table until commit; kept
// minimal since Memory is a test double, not a crash-safe engine.
func (m *Memory) staged(id primitive.ID, p *primitive.Primitive) {
	if m.pending == nil {
		m.pending = map[primitive.ID]*primitive.Primitive{}
	}
	m.pending[id] = p
}

func (m *Memory) AllocCommit(_ context.Context, id primitive.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return nil
	}
	delete(m.pending, id)
	m.prims[id] = p
	m.byGUID[p.GUID] = id
	for l := primitive.Linkage(0); int(l) < 4; l++ {
		target := p.Linkage(l)
		if target.IsNull() {
			continue
		}
		m.byLinkage[linkageKey{l: l, target: target}] = append(m.byLinkage[linkageKey{l: l, target: target}], id)
		if tg := p.Linkage(primitive.TypeGuid); !tg.IsNull() && l != primitive.TypeGuid {
			key := linkageKey{l: l, target: target, typed: true, typeg: tg}
			m.byLinkage[key] = append(m.byLinkage[key], id)
		}
	}
	if p.Value != "" {
		h := m.hash("v:" + p.Value)
		m.byHash[h] = append(m.byHash[h], id)
	}
	if p.Name != "" {
		h := m.hash("n:" + p.Name)
		m.byHash[h] = append(m.byHash[h], id)
	}
	if p.IsNewVersion() {
		if root, ok := m.chainRoot[p.Previous]; ok {
			m.chainRoot[p.GUID] = root
			m.newest[root] = id
		} else {
			m.chainRootInit(p.Previous, p.GUID, id)
		}
	} else {
		m.newest[p.GUID] = id
		if m.chainRoot == nil {
			m.chainRoot = map[primitive.GUID]primitive.GUID{}
		}
		m.chainRoot[p.GUID] = p.GUID
	}
	return nil
}

func (m *Memory) chainRootInit(prev, cur primitive.GUID, id primitive.ID) {
	if m.chainRoot == nil {
		m.chainRoot = map[primitive.GUID]primitive.GUID{}
	}
	m.chainRoot[prev] = prev
	m.chainRoot[cur] = prev
	m.newest[prev] = id
}

func (m *Memory) CheckpointOptional(context.Context) error { return nil }
func (m *Memory) CheckpointRollback(context.Context) error { return nil }

// LastAtOrBefore and FirstAtOrAfter implement dateline.TimestampSearcher
// by scanning the single in-memory instance's primitives; the
// persistent store instead maintains a real timestamp index.
func (m *Memory) LastAtOrBefore(_ uint64, ts int64) (primitive.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found, ok := primitive.ID(0), false
	for id, p := range m.prims {
		if p != nil && p.Timestamp <= ts {
			found, ok = primitive.ID(id), true
		}
	}
	return found, ok
}

func (m *Memory) FirstAtOrAfter(_ uint64, ts int64) (primitive.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.prims {
		if p != nil && p.Timestamp >= ts {
			return primitive.ID(id), true
		}
	}
	return 0, false
}

func (m *Memory) Instances() []uint64 { return []uint64{m.instance} }
