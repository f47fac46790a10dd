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

//go:build linux

package hugetlb

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
	"gvisor.dev/hugequota/pkg/log"
)

// HasPrivateReservations reports whether the kernel reserves huge pages for
// MAP_PRIVATE mappings when they are created, rather than when they are
// first written. f must be a file in a hugetlbfs mount using pages of
// pageSize bytes.
//
// The pool counters are compared around an untouched one page private
// mapping of f. The mapping is never written.
func (h Host) HasPrivateReservations(pageSize uint64, f *os.File) (bool, error) {
	before, err := h.ReadPool(pageSize)
	if err != nil {
		return false, err
	}

	m, err := unix.Mmap(int(f.Fd()), 0, int(pageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return false, fmt.Errorf("mmap(MAP_PRIVATE) of %d bytes: %w", pageSize, err)
	}
	after, err := h.ReadPool(pageSize)
	if uerr := unix.Munmap(m); uerr != nil && err == nil {
		err = fmt.Errorf("munmap: %w", uerr)
	}
	if err != nil {
		return false, err
	}

	log.Debugf("Pool around private mapping: before {%v} after {%v}", before, after)
	return privateReserved(before, after)
}

// privateReserved interprets pool counters taken before and during an
// untouched private mapping. Only three transitions are valid:
//   - every counter went up by one: a surplus page was allocated to back a
//     reservation;
//   - only the reserved counter went up by one: a reservation was taken from
//     an existing pool page;
//   - nothing changed: no reservation was made.
func privateReserved(before, after Pool) (bool, error) {
	switch {
	case after.Total == before.Total+1 && after.Free == before.Free+1 &&
		after.Surplus == before.Surplus+1 && after.Reserved == before.Reserved+1:
		return true, nil
	case after.Total == before.Total && after.Free == before.Free && after.Surplus == before.Surplus:
		switch after.Reserved {
		case before.Reserved + 1:
			return true, nil
		case before.Reserved:
			return false, nil
		}
	}
	return false, fmt.Errorf("bad pool counter transition: before {%v} after {%v}", before, after)
}
