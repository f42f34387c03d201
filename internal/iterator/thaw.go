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

package iterator

import "fmt"

var thawers = map[byte]Thawer{}

func registerThawer(tag byte, t Thawer) { thawers[tag] = t }

// Thaw rebuilds whichever concrete iterator type produced data via
// Freeze, dispatching on the leading tag byte each concrete type
// writes.
func Thaw(flags FreezeFlags, data []byte) (Iterator, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("iterator: empty freeze payload")
	}
	t, ok := thawers[data[0]]
	if !ok {
		return nil, fmt.Errorf("iterator: unknown freeze tag %d", data[0])
	}
	return t(flags, data[1:])
}
