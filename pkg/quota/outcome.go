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

	"gvisor.dev/hugequota/pkg/isolate"
)

// Outcome is the classified result of running a scenario. The three values
// are the only possible outcomes.
type Outcome int

const (
	// Good means the scenario ran to completion.
	Good Outcome = iota

	// Signalled means the scenario was killed by a signal, typically SIGBUS
	// on a page that could not be charged to the quota.
	Signalled

	// ExitNonzero means the scenario detected a failure, such as a refused
	// mmap, and exited.
	ExitNonzero
)

func (o Outcome) String() string {
	switch o {
	case Good:
		return "pass"
	case Signalled:
		return "killed"
	case ExitNonzero:
		return "fail"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// outcomeOf maps the termination of an isolated child to an Outcome.
func outcomeOf(r isolate.Result) (Outcome, error) {
	switch r.Kind {
	case isolate.Success:
		return Good, nil
	case isolate.NonzeroExit:
		return ExitNonzero, nil
	case isolate.Signalled:
		return Signalled, nil
	default:
		return 0, fmt.Errorf("unclassifiable child result %v", r)
	}
}

// Expect returns an *OutcomeMismatchError if actual is not the outcome
// expected by sc.
func Expect(sc Scenario, actual Outcome) error {
	if actual != sc.Expected {
		return &OutcomeMismatchError{Scenario: sc, Actual: actual}
	}
	return nil
}
