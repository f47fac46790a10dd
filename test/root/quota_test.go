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

package root

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moby/sys/mountinfo"
	"gvisor.dev/hugequota/pkg/hugetlb"
	"gvisor.dev/hugequota/pkg/quota"
)

// hostPageSize returns the huge page size, skipping the test if the host
// cannot run the script.
func hostPageSize(t *testing.T) uint64 {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("test requires root")
	}
	host := hugetlb.DefaultHost()
	pageSize, err := host.PageSize()
	if err != nil {
		t.Skipf("huge pages unavailable: %v", err)
	}
	free, err := host.FreePages()
	if err != nil || free < quota.QuotaPages {
		t.Skipf("not enough free huge pages: %d, %v", free, err)
	}
	return pageSize
}

// TestQuotaScript runs the script end to end on a fresh mount.
func TestQuotaScript(t *testing.T) {
	pageSize := hostPageSize(t)
	h := &quota.Harness{Host: hugetlb.DefaultHost(), BaseDir: t.TempDir(), Stderr: os.Stderr}
	rep, err := h.RunOnce(pageSize)
	if err != nil {
		t.Fatalf("RunOnce() failed: %v", err)
	}
	var want []quota.Outcome
	for _, s := range quota.Steps(rep.PrivateReservations) {
		want = append(want, s.Expected)
	}
	if diff := cmp.Diff(want, rep.Outcomes()); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

// TestFreshMount checks the counters of an unused quota mount and that
// Destroy leaves nothing mounted.
func TestFreshMount(t *testing.T) {
	pageSize := hostPageSize(t)
	p := quota.NewProvisioner(pageSize, t.TempDir())
	m, err := p.Create(quota.QuotaPages * pageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer p.Destroy(m)

	v := quota.NewVerifier(m.Env())
	if err := v.AssertSnapshot(quota.QuotaPages, quota.QuotaPages, quota.QuotaPages); err != nil {
		t.Errorf("fresh mount: %v", err)
	}

	if err := p.Destroy(m); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if mounted, err := mountinfo.Mounted(m.Path); err == nil && mounted {
		t.Errorf("%q still mounted after Destroy", m.Path)
	}
}

// TestPrivateReservationsStable checks the probe answers the same way
// twice, and that probing holds no quota.
func TestPrivateReservationsStable(t *testing.T) {
	pageSize := hostPageSize(t)
	p := quota.NewProvisioner(pageSize, t.TempDir())
	m, err := p.Create(quota.QuotaPages * pageSize)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer p.Destroy(m)

	host := hugetlb.DefaultHost()
	var got []bool
	for i := 0; i < 2; i++ {
		f, err := hugetlb.UnlinkedFile()
		if err != nil {
			t.Fatalf("UnlinkedFile() failed: %v", err)
		}
		resv, err := host.HasPrivateReservations(pageSize, f)
		f.Close()
		if err != nil {
			t.Fatalf("HasPrivateReservations() failed: %v", err)
		}
		got = append(got, resv)
	}
	if got[0] != got[1] {
		t.Errorf("HasPrivateReservations() = %v, want a stable answer", got)
	}
	v := quota.NewVerifier(m.Env())
	if err := v.AssertSnapshot(quota.QuotaPages, quota.QuotaPages, quota.QuotaPages); err != nil {
		t.Errorf("after probing: %v", err)
	}
}
