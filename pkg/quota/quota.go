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

// Package quota replays hugetlbfs quota accounting scenarios against a
// privately mounted, quota-limited hugetlbfs instance and checks that the
// kernel refuses, faults or succeeds exactly where expected.
//
// Every scenario runs in an isolated child process so that the faults some
// scenarios provoke on purpose cannot take the harness down. Scenarios run
// strictly one at a time: they share a single quota pool.
package quota

import (
	"fmt"
	"runtime"
	"strings"
)

// QuotaPages is the capacity, in huge pages, of the mount the script runs
// against. Expected outcomes and counters in Steps assume this value.
const QuotaPages = 1

// Env is the state shared by the harness components during one run.
type Env struct {
	// PageSize is the huge page size in bytes. All counts handled by the
	// harness are in units of this size.
	PageSize uint64

	// MountPath is the active hugetlbfs mount.
	MountPath string
}

// Location is a source location in the harness.
type Location struct {
	File string
	Line int
}

// String implements fmt.Stringer.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// caller returns the location of the caller skip frames above caller's own
// caller.
func caller(skip int) Location {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{File: "???"}
	}
	if slash := strings.LastIndexByte(file, '/'); slash >= 0 {
		file = file[slash+1:]
	}
	return Location{File: file, Line: line}
}
