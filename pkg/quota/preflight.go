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
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/moby/sys/capability"
	"gvisor.dev/hugequota/pkg/hugetlb"
	"gvisor.dev/hugequota/pkg/log"
)

// Preflight checks the host before anything is mounted.
type Preflight struct {
	Host hugetlb.Host

	privileged func() (bool, error)
}

// NewPreflight returns a Preflight for host.
func NewPreflight(host hugetlb.Host) *Preflight {
	return &Preflight{Host: host, privileged: canMount}
}

// canMount reports whether the process may mount filesystems.
func canMount() (bool, error) {
	if os.Geteuid() == 0 {
		return true, nil
	}
	caps, err := capability.NewPid2(0)
	if err != nil {
		return false, err
	}
	if err := caps.Load(); err != nil {
		return false, err
	}
	return caps.Get(capability.EFFECTIVE, capability.CAP_SYS_ADMIN), nil
}

// Check returns the huge page size if the host can run the script, and a
// *SetupError otherwise.
func (p *Preflight) Check() (uint64, error) {
	ok, err := p.privileged()
	if err != nil {
		return 0, &SetupError{Check: "privileges", Err: err}
	}
	if !ok {
		return 0, &SetupError{Check: "privileges", Err: errors.New("mounting hugetlbfs requires root or CAP_SYS_ADMIN")}
	}

	pageSize, err := p.Host.PageSize()
	if err != nil {
		return 0, &SetupError{Check: "huge page size", Err: err}
	}
	free, err := p.Host.FreePages()
	if err != nil {
		return 0, &SetupError{Check: "free huge pages", Err: err}
	}
	if free < QuotaPages {
		return 0, &SetupError{
			Check: "free huge pages",
			Err:   fmt.Errorf("%d free, need at least %d; raise /proc/sys/vm/nr_hugepages", free, QuotaPages),
		}
	}
	log.Infof("Huge page size %s, %d page(s) free", units.BytesSize(float64(pageSize)), free)
	return pageSize, nil
}
