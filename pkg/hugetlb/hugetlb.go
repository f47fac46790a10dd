// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hugetlb provides access to the host's huge page pools and to files
// backed by hugetlbfs.
package hugetlb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultMeminfo is the location of the kernel's memory statistics.
	DefaultMeminfo = "/proc/meminfo"

	// DefaultSysfsDir holds one directory per supported huge page size.
	DefaultSysfsDir = "/sys/kernel/mm/hugepages"
)

// Host locates the kernel interfaces used to inspect huge page pools. The
// zero value is not usable; see DefaultHost.
type Host struct {
	// Meminfo is the path of a /proc/meminfo formatted file.
	Meminfo string

	// SysfsDir is the path of a /sys/kernel/mm/hugepages formatted tree.
	SysfsDir string
}

// DefaultHost returns a Host reading the running kernel's interfaces.
func DefaultHost() Host {
	return Host{Meminfo: DefaultMeminfo, SysfsDir: DefaultSysfsDir}
}

// Pool holds the counters of the huge page pool of a single page size.
type Pool struct {
	Total    uint64
	Free     uint64
	Reserved uint64
	Surplus  uint64
}

// String implements fmt.Stringer.
func (p Pool) String() string {
	return fmt.Sprintf("total=%d free=%d rsvd=%d surp=%d", p.Total, p.Free, p.Reserved, p.Surplus)
}

// PageSize returns the default huge page size in bytes.
func (h Host) PageSize() (uint64, error) {
	v, err := h.meminfoField("Hugepagesize")
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, fmt.Errorf("huge page size reported as zero in %s", h.Meminfo)
	}
	return v, nil
}

// FreePages returns the number of free huge pages of the default size.
func (h Host) FreePages() (uint64, error) {
	return h.meminfoField("HugePages_Free")
}

// meminfoField returns the value of a single meminfo field. Values reported
// in kB are converted to bytes.
func (h Host) meminfoField(name string) (uint64, error) {
	f, err := os.Open(h.Meminfo)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		key, rest, ok := strings.Cut(s.Text(), ":")
		if !ok || key != name {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return 0, fmt.Errorf("%s: empty value for %q", h.Meminfo, name)
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: parsing %q: %w", h.Meminfo, name, err)
		}
		if len(fields) > 1 {
			switch fields[1] {
			case "kB":
				v *= 1024
			default:
				return 0, fmt.Errorf("%s: unknown unit %q for %q", h.Meminfo, fields[1], name)
			}
		}
		return v, nil
	}
	if err := s.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%s: field %q not found", h.Meminfo, name)
}

// poolDir returns the sysfs directory for pages of the given size.
func (h Host) poolDir(pageSize uint64) string {
	return filepath.Join(h.SysfsDir, fmt.Sprintf("hugepages-%dkB", pageSize/1024))
}

// ReadPool reads the pool counters for pages of the given size.
func (h Host) ReadPool(pageSize uint64) (Pool, error) {
	dir := h.poolDir(pageSize)
	var p Pool
	for _, c := range []struct {
		name string
		dst  *uint64
	}{
		{"nr_hugepages", &p.Total},
		{"free_hugepages", &p.Free},
		{"resv_hugepages", &p.Reserved},
		{"surplus_hugepages", &p.Surplus},
	} {
		v, err := readCounter(filepath.Join(dir, c.name))
		if err != nil {
			return Pool{}, err
		}
		*c.dst = v
	}
	return p, nil
}

func readCounter(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}
