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
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
	"gvisor.dev/hugequota/pkg/hugetlb"
)

const testPageSize = 2 << 20

// fakeKernel stands in for the mount syscalls of a Provisioner.
type fakeKernel struct {
	mountData    []string
	mountErr     error
	magic        int64
	bsize        int64
	unmountErrs  []error
	unmountCalls int
	notMounted   bool
}

func (k *fakeKernel) provisioner(t *testing.T) *Provisioner {
	p := NewProvisioner(testPageSize, t.TempDir())
	p.BusyTimeout = time.Second
	p.mount = func(source, target, fstype string, flags uintptr, data string) error {
		if source != "none" || fstype != "hugetlbfs" {
			t.Errorf("mount(%q, %q, %q) called", source, target, fstype)
		}
		k.mountData = append(k.mountData, data)
		return k.mountErr
	}
	p.unmount = func(target string, flags int) error {
		k.unmountCalls++
		if len(k.unmountErrs) == 0 {
			return nil
		}
		err := k.unmountErrs[0]
		if len(k.unmountErrs) > 1 {
			k.unmountErrs = k.unmountErrs[1:]
		}
		return err
	}
	p.statfs = func(path string, buf *unix.Statfs_t) error {
		buf.Type = k.magic
		buf.Bsize = k.bsize
		return nil
	}
	p.mounted = func(path string) (bool, error) {
		return !k.notMounted, nil
	}
	return p
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{magic: unix.HUGETLBFS_MAGIC, bsize: testPageSize}
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%q) failed: %v", dir, err)
	}
	return len(ents)
}

func TestCreateDestroy(t *testing.T) {
	t.Setenv(hugetlb.PathEnv, "/previous")
	k := newFakeKernel()
	p := k.provisioner(t)

	// Capacity is rounded down to whole pages.
	m, err := p.Create(2*testPageSize + testPageSize/2)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"size=4096K"}, k.mountData); diff != "" {
		t.Errorf("mount data mismatch (-want +got):\n%s", diff)
	}
	if m.Pages() != 2 || m.Capacity != 2*testPageSize {
		t.Errorf("mount has %d page(s), capacity %d, want 2 pages", m.Pages(), m.Capacity)
	}
	if got := os.Getenv(hugetlb.PathEnv); got != m.Path {
		t.Errorf("%s = %q, want %q", hugetlb.PathEnv, got, m.Path)
	}
	if want := (Env{PageSize: testPageSize, MountPath: m.Path}); m.Env() != want {
		t.Errorf("Env() = %+v, want %+v", m.Env(), want)
	}
	if fi, err := os.Stat(m.Path); err != nil || !fi.IsDir() {
		t.Fatalf("mount point %q missing: %v", m.Path, err)
	}

	if err := p.Destroy(m); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if _, err := os.Stat(m.Path); !os.IsNotExist(err) {
		t.Errorf("mount point %q still exists: %v", m.Path, err)
	}
	if got := os.Getenv(hugetlb.PathEnv); got != "/previous" {
		t.Errorf("%s = %q after Destroy, want /previous", hugetlb.PathEnv, got)
	}

	// Destroy is idempotent.
	if err := p.Destroy(m); err != nil {
		t.Errorf("second Destroy() failed: %v", err)
	}
	if k.unmountCalls != 1 {
		t.Errorf("unmount called %d times, want 1", k.unmountCalls)
	}
}

func TestDestroyUnsetsEnv(t *testing.T) {
	t.Setenv(hugetlb.PathEnv, "")
	os.Unsetenv(hugetlb.PathEnv)
	p := newFakeKernel().provisioner(t)
	m, err := p.Create(testPageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := p.Destroy(m); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if v, ok := os.LookupEnv(hugetlb.PathEnv); ok {
		t.Errorf("%s = %q after Destroy, want unset", hugetlb.PathEnv, v)
	}
}

func TestCreateFailures(t *testing.T) {
	for _, tc := range []struct {
		name     string
		capacity uint64
		setup    func(k *fakeKernel)
		reason   error
		unmounts int
	}{
		{
			name:     "below one page",
			capacity: testPageSize - 1,
		},
		{
			name:     "not permitted",
			capacity: testPageSize,
			setup:    func(k *fakeKernel) { k.mountErr = unix.EPERM },
			reason:   ErrPrivilege,
		},
		{
			name:     "no hugetlbfs",
			capacity: testPageSize,
			setup:    func(k *fakeKernel) { k.mountErr = unix.ENODEV },
			reason:   ErrUnsupported,
		},
		{
			name:     "wrong magic",
			capacity: testPageSize,
			setup:    func(k *fakeKernel) { k.magic = 0x01021994 },
			reason:   ErrUnsupported,
			unmounts: 1,
		},
		{
			name:     "wrong block size",
			capacity: testPageSize,
			setup:    func(k *fakeKernel) { k.bsize = 4096 },
			unmounts: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(hugetlb.PathEnv, "/previous")
			k := newFakeKernel()
			if tc.setup != nil {
				tc.setup(k)
			}
			p := k.provisioner(t)
			_, err := p.Create(tc.capacity)

			var pe *ProvisionError
			if !errors.As(err, &pe) {
				t.Fatalf("Create() = %v, want ProvisionError", err)
			}
			if tc.reason != nil && !errors.Is(err, tc.reason) {
				t.Errorf("Create() = %v, want reason %v", err, tc.reason)
			}
			if k.unmountCalls != tc.unmounts {
				t.Errorf("unmount called %d times, want %d", k.unmountCalls, tc.unmounts)
			}
			if n := dirEntries(t, p.BaseDir); n != 0 {
				t.Errorf("%d entries left in %q", n, p.BaseDir)
			}
			if got := os.Getenv(hugetlb.PathEnv); got != "/previous" {
				t.Errorf("%s = %q, want /previous", hugetlb.PathEnv, got)
			}
		})
	}
}

func TestDestroyRetriesBusy(t *testing.T) {
	k := newFakeKernel()
	p := k.provisioner(t)
	m, err := p.Create(testPageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	k.unmountErrs = []error{unix.EBUSY, unix.EBUSY, nil}
	if err := p.Destroy(m); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if k.unmountCalls != 3 {
		t.Errorf("unmount called %d times, want 3", k.unmountCalls)
	}
	if n := dirEntries(t, p.BaseDir); n != 0 {
		t.Errorf("%d entries left in %q", n, p.BaseDir)
	}
}

func TestDestroyBusyTimeout(t *testing.T) {
	k := newFakeKernel()
	p := k.provisioner(t)
	p.BusyTimeout = 300 * time.Millisecond
	m, err := p.Create(testPageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	k.unmountErrs = []error{unix.EBUSY}
	if err := p.Destroy(m); !errors.Is(err, unix.EBUSY) {
		t.Fatalf("Destroy() = %v, want EBUSY", err)
	}
	if k.unmountCalls < 2 {
		t.Errorf("unmount called %d times, want retries", k.unmountCalls)
	}
	// A mount point that is still mounted is not removed.
	if _, err := os.Stat(m.Path); err != nil {
		t.Errorf("mount point removed while mounted: %v", err)
	}

	// Once the mount is no longer busy, Destroy finishes the teardown.
	calls := k.unmountCalls
	k.unmountErrs = []error{nil}
	if err := p.Destroy(m); err != nil {
		t.Fatalf("Destroy() after busy failure = %v", err)
	}
	if k.unmountCalls != calls+1 {
		t.Errorf("unmount called %d more times, want 1", k.unmountCalls-calls)
	}
	if n := dirEntries(t, p.BaseDir); n != 0 {
		t.Errorf("%d entries left in %q", n, p.BaseDir)
	}
}

func TestDestroyPermanentFailure(t *testing.T) {
	k := newFakeKernel()
	p := k.provisioner(t)
	m, err := p.Create(testPageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	k.unmountErrs = []error{unix.EPERM}
	if err := p.Destroy(m); !errors.Is(err, unix.EPERM) {
		t.Fatalf("Destroy() = %v, want EPERM", err)
	}
	if k.unmountCalls != 1 {
		t.Errorf("unmount called %d times, want 1", k.unmountCalls)
	}
}

func TestDestroyAlreadyGone(t *testing.T) {
	for _, tc := range []struct {
		name     string
		setup    func(k *fakeKernel)
		unmounts int
	}{
		{
			name:  "not mounted",
			setup: func(k *fakeKernel) { k.notMounted = true },
		},
		{
			name:     "unmount EINVAL",
			setup:    func(k *fakeKernel) { k.unmountErrs = []error{unix.EINVAL} },
			unmounts: 1,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newFakeKernel()
			p := k.provisioner(t)
			m, err := p.Create(testPageSize)
			if err != nil {
				t.Fatalf("Create() failed: %v", err)
			}
			tc.setup(k)
			if err := p.Destroy(m); err != nil {
				t.Fatalf("Destroy() failed: %v", err)
			}
			if k.unmountCalls != tc.unmounts {
				t.Errorf("unmount called %d times, want %d", k.unmountCalls, tc.unmounts)
			}
			if n := dirEntries(t, p.BaseDir); n != 0 {
				t.Errorf("%d entries left in %q", n, p.BaseDir)
			}
		})
	}
}

func TestDestroyNil(t *testing.T) {
	if err := newFakeKernel().provisioner(t).Destroy(nil); err != nil {
		t.Errorf("Destroy(nil) = %v", err)
	}
}
