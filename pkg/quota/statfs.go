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

	"golang.org/x/sys/unix"
)

// Snapshot is the quota state of a hugetlbfs mount, in huge pages.
type Snapshot struct {
	Total     uint64
	Free      uint64
	Available uint64
}

// String implements fmt.Stringer.
func (s Snapshot) String() string {
	return fmt.Sprintf("total: %d free: %d avail: %d", s.Total, s.Free, s.Available)
}

// Verifier reads and checks the quota counters of a mount.
type Verifier struct {
	env    Env
	statfs func(path string, buf *unix.Statfs_t) error
}

// NewVerifier returns a Verifier for the mount in env.
func NewVerifier(env Env) *Verifier {
	return &Verifier{env: env, statfs: unix.Statfs}
}

// Snapshot returns the current quota state of the mount.
func (v *Verifier) Snapshot() (Snapshot, error) {
	var st unix.Statfs_t
	if err := v.statfs(v.env.MountPath, &st); err != nil {
		return Snapshot{}, fmt.Errorf("statfs(%q): %w", v.env.MountPath, err)
	}
	if uint64(st.Bsize) != v.env.PageSize {
		return Snapshot{}, fmt.Errorf("statfs(%q): block size %d differs from huge page size %d", v.env.MountPath, st.Bsize, v.env.PageSize)
	}
	return Snapshot{Total: st.Blocks, Free: st.Bfree, Available: st.Bavail}, nil
}

// Check returns a *CounterMismatchError naming loc if the mount's quota
// state is not want.
func (v *Verifier) Check(loc Location, want Snapshot) error {
	got, err := v.Snapshot()
	if err != nil {
		return err
	}
	if got != want {
		return &CounterMismatchError{Location: loc, Want: want, Got: got}
	}
	return nil
}

// AssertSnapshot is Check against the given counters, reporting the
// caller's location on mismatch.
func (v *Verifier) AssertSnapshot(total, free, avail uint64) error {
	return v.Check(caller(1), Snapshot{Total: total, Free: free, Available: avail})
}
