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

//go:build !linux

package rusage

import "errors"

// ErrUnsupported is returned by SelfReader on platforms without a
// cgroupv2 filesystem to read usage from.
var ErrUnsupported = errors.New("rusage: unsupported platform")

// SelfReader always fails outside Linux; callers should treat a
// missing Reader as "usage reporting disabled" rather than fatal.
func SelfReader() (Reader, error) {
	return nil, ErrUnsupported
}
