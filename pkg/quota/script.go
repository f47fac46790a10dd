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
	"time"

	"gvisor.dev/hugequota/pkg/log"
)

// Step is a scenario of the script, optionally followed by a counter check.
type Step struct {
	Scenario

	// After, if set, is the quota state expected once the scenario
	// terminated.
	After *Snapshot
}

// step declares a scenario at the caller's location.
func step(expected Outcome, pages uint64, mode Mode, actions Action) Step {
	return Step{Scenario: Scenario{
		Pages:    pages,
		Mode:     mode,
		Actions:  actions,
		Expected: expected,
		Location: caller(1),
	}}
}

// thenQuota returns s followed by a check of the quota counters.
func (s Step) thenQuota(total, free, avail uint64) Step {
	s.After = &Snapshot{Total: total, Free: free, Available: avail}
	return s
}

// Steps returns the script for a mount of QuotaPages pages. privateResv is
// whether the kernel reserves private mappings at mmap time.
func Steps(privateResv bool) []Step {
	steps := []Step{
		// Untouched mappings hold no quota once gone.
		step(Good, 1, Private, 0).thenQuota(QuotaPages, QuotaPages, QuotaPages),
		step(Good, 1, Shared, 0).thenQuota(QuotaPages, QuotaPages, QuotaPages),

		// Instantiating pages within the quota works.
		step(Good, 1, Private, Touch),
		step(Good, 1, Shared, Touch),

		// Shared mappings over quota are refused at mmap time.
		step(ExitNonzero, 2, Shared, Touch),
	}

	// Private mappings over quota are refused at mmap time if reserved up
	// front, and fault on the first page past the quota otherwise.
	if privateResv {
		steps = append(steps, step(ExitNonzero, 2, Private, Touch))
	} else {
		steps = append(steps, step(Signalled, 2, Private, Touch))
	}

	steps = append(steps,
		// The page a copy-on-write duplicates is over quota.
		step(Signalled, 1, Shared, Touch|CopyOnWrite),
		step(Signalled, 1, Private, Touch|CopyOnWrite),

		// Failures above leaked nothing.
		step(Good, 1, Shared, Touch),
		step(Good, 1, Private, Touch),
	)
	return steps
}

// ScenarioRunner runs a scenario to completion. Executor is the real
// implementation.
type ScenarioRunner interface {
	Run(sc Scenario) (Outcome, error)
}

// QuotaChecker checks the quota counters. Verifier is the real
// implementation.
type QuotaChecker interface {
	Check(loc Location, want Snapshot) error
}

// ReservationProbe reports whether the kernel reserves private mappings at
// mmap time.
type ReservationProbe func() (bool, error)

// StepResult is the record of one completed step.
type StepResult struct {
	Scenario Scenario
	Actual   Outcome
	Duration time.Duration
}

// Report is the record of a script run.
type Report struct {
	PrivateReservations bool
	Steps               []StepResult
}

// Script runs Steps in order and stops at the first failure.
type Script struct {
	Runner ScenarioRunner
	Quota  QuotaChecker
	Probe  ReservationProbe
}

// Run probes the kernel, then runs every step. The returned report covers
// the steps that ran, including a failed one. Outcome and counter failures
// are *OutcomeMismatchError and *CounterMismatchError.
func (s *Script) Run() (*Report, error) {
	resv, err := s.Probe()
	if err != nil {
		return nil, &SetupError{Check: "private reservation probe", Err: err}
	}
	if resv {
		log.Infof("Kernel reserves private mappings at mmap time")
	} else {
		log.Infof("Kernel instantiates private mappings lazily")
	}

	rep := &Report{PrivateReservations: resv}
	steps := Steps(resv)
	for i, st := range steps {
		start := time.Now()
		actual, err := s.Runner.Run(st.Scenario)
		if err != nil {
			return rep, fmt.Errorf("step %d at %v: %w", i+1, st.Location, err)
		}
		rep.Steps = append(rep.Steps, StepResult{Scenario: st.Scenario, Actual: actual, Duration: time.Since(start)})
		log.Infof("Step %d/%d: %v: %v", i+1, len(steps), st.Scenario, actual)

		if err := Expect(st.Scenario, actual); err != nil {
			return rep, err
		}
		if st.After != nil {
			if err := s.Quota.Check(st.Location, *st.After); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// Outcomes returns the actual outcomes of the steps in r.
func (r *Report) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, s.Actual)
	}
	return out
}
