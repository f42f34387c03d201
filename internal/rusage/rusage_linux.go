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

//go:build linux

package rusage

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir is an absolute cgroupv2 directory path.
type Dir string

// Root finds the first cgroup2 mountpoint listed in /proc/mounts.
func Root() (Dir, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return "", err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) >= 3 && parts[2] == "cgroup2" {
			return Dir(parts[1]), nil
		}
	}
	if err := s.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("rusage: no cgroup2 mountpoint found")
}

// Self returns the cgroup directory of the calling process, assuming
// a pure cgroupv2 hierarchy (not a cgroup1/cgroup2 hybrid).
func Self() (Dir, error) {
	text, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	text = bytes.TrimSpace(text)
	if len(text) < 3 || text[0] != '0' || text[1] != ':' || text[2] != ':' {
		return "", fmt.Errorf("rusage: unexpected /proc/self/cgroup format: %s", text)
	}
	i := bytes.IndexByte(text, '/')
	if i < 0 {
		return "", fmt.Errorf("rusage: %s is not a valid cgroup path", text)
	}
	root, err := Root()
	if err != nil {
		return "", err
	}
	return Dir(filepath.Join(string(root), string(text[i:]))), nil
}

func (d Dir) readUint(name string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(string(d), name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rusage: parsing %s: %w", name, err)
	}
	return v, nil
}

// cpuStatField reads one key from cpu.stat's "key value\n..." format.
func (d Dir) cpuStatField(field string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(string(d), "cpu.stat"))
	if err != nil {
		return 0, err
	}
	s := bufio.NewScanner(bytes.NewReader(data))
	for s.Scan() {
		parts := strings.Fields(s.Text())
		if len(parts) == 2 && parts[0] == field {
			v, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("rusage: parsing cpu.stat %s: %w", field, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("rusage: cpu.stat has no field %q", field)
}

// Read samples memory.current and cpu.stat's usage_usec within d.
func (d Dir) Read() (Usage, error) {
	mem, err := d.readUint("memory.current")
	if err != nil {
		return Usage{}, err
	}
	cpu, err := d.cpuStatField("usage_usec")
	if err != nil {
		return Usage{}, err
	}
	return Usage{MemoryBytes: mem, CPUUsecTotal: cpu}, nil
}

// SelfReader returns a Reader sampling the current process's own
// cgroup, for wiring into a status/health endpoint.
func SelfReader() (Reader, error) {
	d, err := Self()
	if err != nil {
		return nil, err
	}
	return d, nil
}
