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
	"strconv"

	"github.com/graphd/graphd/internal/pattern"
	"github.com/graphd/graphd/internal/wire"
)

// toReply converts a pattern.Value - the typed result tree
// read.Evaluate and write.Write both produce - into the wire.Reply
// tree wire.OK renders as reply text. Timestamps render as the same
// decimal microsecond text a timestamp= clause accepts on the way in,
// so a reply value round-trips directly into a later request.
func toReply(v pattern.Value) wire.Reply {
	switch v.Kind {
	case pattern.List, pattern.Pick, pattern.Contents:
		items := make([]wire.Reply, len(v.List))
		for i, c := range v.List {
			items[i] = toReply(c)
		}
		return wire.List(items...)
	case pattern.Guid, pattern.Linkage:
		return wire.GUIDHex(v.GUID.String())
	case pattern.Timestamp:
		return wire.Timestamp(strconv.FormatInt(v.Int, 10))
	case pattern.Name, pattern.Value, pattern.Datatype, pattern.Literal:
		return wire.String(v.Str)
	case pattern.Cursor:
		if v.Str == "" {
			return wire.Null()
		}
		return wire.String(v.Str)
	case pattern.Count, pattern.EstimateCount, pattern.Estimate:
		return wire.Number(v.Int)
	case pattern.IteratorState:
		return wire.String(v.Str)
	default:
		return wire.Null()
	}
}
