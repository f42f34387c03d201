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

// Package rusage reports process memory and CPU usage, read from the
// cgroupv2 filesystem on Linux, for the server's status/health
// surface. The accounting primitive is ambient infrastructure shared
// with anything that wants a process-level resource snapshot; it does
// not implement the line-protocol "status" clause itself.
package rusage

// Usage is a point-in-time resource snapshot.
type Usage struct {
	// MemoryBytes is the cgroup's current memory usage
	// (memory.current), or 0 if unavailable.
	MemoryBytes uint64
	// CPUUsecTotal is cumulative CPU microseconds consumed
	// (cpu.stat's usage_usec field), or 0 if unavailable.
	CPUUsecTotal uint64
}

// Reader samples a Usage snapshot. Self returns a Reader bound to the
// current process's cgroup on platforms that support it.
type Reader interface {
	Read() (Usage, error)
}
