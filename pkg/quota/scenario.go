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

package quota

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Mode is the mapping mode of a scenario.
type Mode int

const (
	// Private mappings are copy-on-write.
	Private Mode = iota

	// Shared mappings are visible to every mapping of the file, and are
	// always charged against the quota when created.
	Shared
)

func (m Mode) String() string {
	switch m {
	case Private:
		return "private"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "private":
		return Private, nil
	case "shared":
		return Shared, nil
	default:
		return 0, fmt.Errorf("invalid mapping mode %q, must be 'private' or 'shared'", s)
	}
}

// mmapFlags returns the mmap(2) flags for the mode.
func (m Mode) mmapFlags() int {
	if m == Shared {
		return unix.MAP_SHARED
	}
	return unix.MAP_PRIVATE
}

// Action is a set of operations a scenario performs on its mapping.
type Action uint32

const (
	// Touch writes one byte in every huge page of the mapping, forcing the
	// pages to be instantiated.
	Touch Action = 1 << iota

	// CopyOnWrite maps the file a second time privately, checks it sees the
	// touched data, and writes through it, forcing a page duplication.
	CopyOnWrite
)

// Has returns true if every action in b is in a.
func (a Action) Has(b Action) bool {
	return a&b == b
}

func (a Action) String() string {
	if a == 0 {
		return "none"
	}
	var names []string
	if a.Has(Touch) {
		names = append(names, "touch")
	}
	if a.Has(CopyOnWrite) {
		names = append(names, "cow")
	}
	if rest := a &^ (Touch | CopyOnWrite); rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// Scenario is a single mapping experiment and its expected outcome.
type Scenario struct {
	// Pages is the mapping size in huge pages.
	Pages uint64

	Mode    Mode
	Actions Action

	// Expected is the outcome a correct kernel produces.
	Expected Outcome

	// Location is where the scenario is declared.
	Location Location
}

// String implements fmt.Stringer.
func (s Scenario) String() string {
	return fmt.Sprintf("%d page(s) %v, actions %v", s.Pages, s.Mode, s.Actions)
}
