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

package request

import (
	"context"
	"strconv"

	"github.com/graphd/graphd/internal/constraint"
	"github.com/graphd/graphd/internal/dateline"
	"github.com/graphd/graphd/internal/graphderr"
	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/primitive"
	"github.com/graphd/graphd/internal/read"
	"github.com/graphd/graphd/internal/session"
	"github.com/graphd/graphd/internal/store"
	"github.com/graphd/graphd/internal/wire"
	"github.com/graphd/graphd/internal/write"
)

// Handle runs one request line end to end: lower its text, complete
// its constraint tree, dispatch to the read or write engine, and
// render the result (or an error) as reply text. It never panics on
// malformed client input - every failure path returns an error reply
// line instead.
func Handle(ctx context.Context, st store.Store, req *session.Request, bootstrap *write.Bootstrap, text string) string {
	v, err := handle(ctx, st, req, bootstrap, text)
	if err != nil {
		return wire.ErrorLine(err)
	}
	return wire.OK(toReply(v))
}

func handle(ctx context.Context, st store.Store, req *session.Request, bootstrap *write.Bootstrap, text string) (pattern.Value, error) {
	parsed, err := Lower(text)
	if err != nil {
		return pattern.Value{}, err
	}

	opts := constraint.Options{Kind: parsed.Kind, Types: bootstrap, Chains: chainResolver{st}}
	if searcher, ok := st.(dateline.TimestampSearcher); ok {
		opts.Times = searcher
		if parsed.Asof != "" {
			ts, convErr := strconv.ParseInt(parsed.Asof, 10, 64)
			if convErr != nil {
				return pattern.Value{}, graphderr.Syntaxf("asof: %v", convErr)
			}
			d := dateline.CompileBefore(searcher, ts)
			opts.Asof = &d
			opts.HasAsof = true
		}
	}

	if err := constraint.Complete(ctx, parsed.Arena, parsed.Root, opts); err != nil {
		return pattern.Value{}, err
	}

	switch parsed.Kind {
	case constraint.Write:
		return write.Write(ctx, st, req, bootstrap, parsed.Arena, parsed.Root)
	default:
		return read.Evaluate(ctx, st, req, parsed.Arena, parsed.Root, parsed.Cursor)
	}
}

// chainResolver adapts store.Store's Newest/ByGUID surface into
// constraint.ChainResolver: a generation chain is just the Previous
// links from the chain's newest primitive back to its first version,
// which is exactly what store.Store already exposes without a
// dedicated chain-enumeration method.
type chainResolver struct{ st store.Store }

func (c chainResolver) Chain(ctx context.Context, g primitive.GUID) ([]primitive.GUID, error) {
	id, ok, err := c.st.Newest(ctx, g)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []primitive.GUID{g}, nil
	}
	p, ok, err := c.st.ByLocalID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []primitive.GUID{g}, nil
	}
	var chain []primitive.GUID
	for {
		chain = append(chain, p.GUID)
		if p.Previous.IsNull() {
			return chain, nil
		}
		prev, ok, err := c.st.ByGUID(ctx, p.Previous)
		if err != nil {
			return nil, err
		}
		if !ok {
			return chain, nil
		}
		p = prev
	}
}
