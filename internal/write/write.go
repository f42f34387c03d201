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

// Package write implements the write engine: key/unique cluster
// matching against existing primitives (annotate_keyed_push) and the
// bottom-up insert phase that writes, versions, or reuses primitives
// for the rest of the tree (key_align). The cluster-matching phase is
// built directly on the read engine in internal/read (key_align does
// not use it): a cluster's candidate
// match is itself an ordinary read request over a purpose-built
// duplicate of the cluster's constraints.
package write

import (
	"context"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
)

// Write runs root as a top-level write request: every key cluster is
// matched (and reused) or found new, every unique cluster is checked
// and rejects the whole write on any match, and the remaining tree is
// aligned bottom-up, allocating whatever primitives the match phase
// didn't already resolve. It returns the same kind of result-pattern
// value tuple Evaluate does, built from each constraint's own
// (possibly absent) result pattern applied to the GUID it was written
// or reused as.
func Write(ctx context.Context, st store.Store, req *session.Request, bootstrap *Bootstrap, a *constraint.Arena, root constraint.ID) (pattern.Value, error) {
	keyMatches, err := processClusters(ctx, st, req, bootstrap, a, root, keyMaskOf, false)
	if err != nil {
		return pattern.Value{}, err
	}
	if _, err := processClusters(ctx, st, req, bootstrap, a, root, uniqueMaskOf, true); err != nil {
		return pattern.Value{}, err
	}

	al := newAligner(ctx, st, bootstrap, keyMatches)
	if _, err := al.align(a, root, nil); err != nil {
		return pattern.Value{}, err
	}
	v, err := al.formatNode(a, root)
	if err != nil {
		return pattern.Value{}, err
	}
	return pattern.Value{Kind: pattern.List, List: []pattern.Value{v}}, nil
}
