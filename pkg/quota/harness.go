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
	"io"

	"gvisor.dev/hugequota/pkg/hugetlb"
	"gvisor.dev/hugequota/pkg/log"
)

// Harness runs the script end to end on fresh mounts.
type Harness struct {
	Host hugetlb.Host

	// BaseDir is where mount points are created. Empty means os.TempDir().
	BaseDir string

	// ChildFlags and Stderr are passed on to every Executor.
	ChildFlags []string
	Stderr     io.Writer
}

// probeFor returns a ReservationProbe using a file on the mount in env.
func (h *Harness) probeFor(env Env) ReservationProbe {
	return func() (bool, error) {
		f, err := hugetlb.UnlinkedFileIn(env.MountPath)
		if err != nil {
			return false, err
		}
		defer f.Close()
		return h.Host.HasPrivateReservations(env.PageSize, f)
	}
}

// RunOnce mounts a fresh QuotaPages quota, runs the script against it and
// tears the mount down again, whatever the script's result.
func (h *Harness) RunOnce(pageSize uint64) (rep *Report, err error) {
	p := NewProvisioner(pageSize, h.BaseDir)
	m, err := p.Create(QuotaPages * pageSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if derr := p.Destroy(m); derr != nil {
			if err == nil {
				err = derr
			} else {
				log.Warningf("Destroying mount after failure: %v", derr)
			}
		}
	}()

	env := m.Env()
	exec := NewExecutor(env)
	exec.ChildFlags = h.ChildFlags
	exec.Stderr = h.Stderr
	s := &Script{
		Runner: exec,
		Quota:  NewVerifier(env),
		Probe:  h.probeFor(env),
	}
	return s.Run()
}

// Run calls RunOnce runs times and checks the runs agree. It stops at the
// first failed run.
func (h *Harness) Run(pageSize uint64, runs int) ([]*Report, error) {
	if runs < 1 {
		return nil, fmt.Errorf("invalid number of runs %d", runs)
	}
	var reps []*Report
	for i := 0; i < runs; i++ {
		log.Infof("Run %d/%d", i+1, runs)
		rep, err := h.RunOnce(pageSize)
		if err != nil {
			return reps, fmt.Errorf("run %d: %w", i+1, err)
		}
		if len(reps) > 0 && rep.PrivateReservations != reps[0].PrivateReservations {
			return reps, fmt.Errorf("run %d: private reservation probe returned %t, run 1 returned %t",
				i+1, rep.PrivateReservations, reps[0].PrivateReservations)
		}
		reps = append(reps, rep)
	}
	return reps, nil
}
