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
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func fakeVerifier(st unix.Statfs_t, err error) *Verifier {
	v := NewVerifier(Env{PageSize: testPageSize, MountPath: "/tmp/huge-test"})
	v.statfs = func(path string, buf *unix.Statfs_t) error {
		*buf = st
		return err
	}
	return v
}

func TestSnapshot(t *testing.T) {
	v := fakeVerifier(unix.Statfs_t{Bsize: testPageSize, Blocks: 4, Bfree: 3, Bavail: 2}, nil)
	got, err := v.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if want := (Snapshot{Total: 4, Free: 3, Available: 2}); got != want {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestSnapshotErrors(t *testing.T) {
	if _, err := fakeVerifier(unix.Statfs_t{}, unix.ENOENT).Snapshot(); !errors.Is(err, unix.ENOENT) {
		t.Errorf("Snapshot() = %v, want ENOENT", err)
	}
	if _, err := fakeVerifier(unix.Statfs_t{Bsize: 4096, Blocks: 1}, nil).Snapshot(); err == nil {
		t.Errorf("Snapshot() with mismatched block size succeeded")
	}
}

func TestAssertSnapshot(t *testing.T) {
	v := fakeVerifier(unix.Statfs_t{Bsize: testPageSize, Blocks: 1, Bfree: 0, Bavail: 0}, nil)
	if err := v.AssertSnapshot(1, 0, 0); err != nil {
		t.Errorf("AssertSnapshot(matching) = %v", err)
	}

	err := v.AssertSnapshot(1, 1, 1)
	var mismatch *CounterMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("AssertSnapshot(mismatching) = %v, want CounterMismatchError", err)
	}
	if mismatch.Location.File != "statfs_test.go" || mismatch.Location.Line == 0 {
		t.Errorf("mismatch reported at %v, want statfs_test.go", mismatch.Location)
	}
	if want := (Snapshot{Total: 1}); mismatch.Got != want {
		t.Errorf("mismatch got %v, want %v", mismatch.Got, want)
	}
}
