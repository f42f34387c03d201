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

// Package store defines the narrow contract the evaluation core
// consumes from the persistent primitive store: read by id or GUID,
// append, enumerate by linkage/linkage+type/hash, and the
// checkpoint/rollback hooks that let the core clear its bootstrap
// cache on restart. The persistent engine itself (on-disk layout,
// secondary index maintenance, replication) is an external
// collaborator this package only calls through to; Memory below is a
// reference implementation used by tests and by the single-process
// `graphd` binary's embedded mode.
package store

import (
	"context"

	"github.com/graphd/graphd/internal/primitive"
)

// Store is the pdb-facing shim the evaluation core depends on. Every
// method that can block on I/O takes a context so a caller enforcing
// a request deadline can cancel it.
type Store interface {
	// ByLocalID reads the primitive at local id, or reports NotFound
	// via a nil primitive and ok=false.
	ByLocalID(ctx context.Context, id primitive.ID) (*primitive.Primitive, bool, error)
	// ByGUID reads the primitive with the given GUID.
	ByGUID(ctx context.Context, g primitive.GUID) (*primitive.Primitive, bool, error)
	// Newest reports the local id of the newest primitive in g's
	// generation chain (the chain containing g).
	Newest(ctx context.Context, g primitive.GUID) (primitive.ID, bool, error)

	// ByLinkage enumerates, in ascending local-id order, every
	// primitive whose Linkage(l) equals target.
	ByLinkage(ctx context.Context, l primitive.Linkage, target primitive.GUID) (IDIterator, error)
	// ByLinkageType enumerates primitives whose Linkage(l) equals
	// target and whose typeguid linkage equals typeguid - the "VIP"
	// index when the store maintains one natively.
	ByLinkageType(ctx context.Context, l primitive.Linkage, target, typeguid primitive.GUID) (IDIterator, bool, error)
	// ByValueHash enumerates primitives whose Value hashes to the
	// same bucket as value, for use building key/unique cluster
	// candidate sets without a full scan.
	ByValueHash(ctx context.Context, value string) (IDIterator, error)
	// ByNameHash is ByValueHash's counterpart for the Name field.
	ByNameHash(ctx context.Context, name string) (IDIterator, error)

	// Alloc reserves a fresh local id and GUID for p without making it
	// visible to readers; AllocCommit makes it visible. This two-phase
	// split is what gives writes all-or-nothing semantics: a crash
	// between Alloc and AllocCommit leaves no visible partial write.
	Alloc(ctx context.Context, p *primitive.Primitive) (primitive.ID, primitive.GUID, error)
	AllocCommit(ctx context.Context, id primitive.ID) error

	// Instance reports this store's writer instance id, used to stamp
	// the dateline of primitives it allocates.
	Instance() uint64

	// CheckpointOptional asks the store to checkpoint if it judges one
	// due; it is advisory and may be a no-op.
	CheckpointOptional(ctx context.Context) error
	// CheckpointRollback rolls back to the last checkpoint; the core
	// uses this hook only to invalidate its cached bootstrap GUIDs,
	// never to drive the rollback itself.
	CheckpointRollback(ctx context.Context) error
}

// IDIterator is the minimal sequential contract the store's native
// index enumerations satisfy (internal/iterator.Fixed does not: its
// Next takes a Budget rather than a context), and the
// evaluator wraps whichever comes back from Store into the full
// iterator.Iterator contract at the boundary.
type IDIterator interface {
	// Next returns the next id in ascending order, or ok=false at
	// the end of the enumeration.
	Next(ctx context.Context) (primitive.ID, bool, error)
}
