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
)

var (
	// ErrPrivilege is matched by provisioning errors caused by missing
	// privileges.
	ErrPrivilege = errors.New("insufficient privilege")

	// ErrUnsupported is matched by provisioning errors caused by the kernel
	// lacking hugetlbfs.
	ErrUnsupported = errors.New("hugetlbfs not supported")
)

// SetupError is a failure to prepare the environment the script needs. It is
// distinct from a scenario failure: nothing about quota accounting was
// learned.
type SetupError struct {
	// Check names what was being set up.
	Check string
	Err   error
}

// Error implements error.Error.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Check, e.Err)
}

// Unwrap returns the cause.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// ProvisionError is a failure to create the quota-limited mount.
type ProvisionError struct {
	// Op is the failed operation.
	Op   string
	Path string

	// Reason is ErrPrivilege, ErrUnsupported or nil.
	Reason error
	Err    error
}

// Error implements error.Error.
func (e *ProvisionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("provisioning hugetlbfs at %q: %s: %v (%v)", e.Path, e.Op, e.Err, e.Reason)
	}
	return fmt.Sprintf("provisioning hugetlbfs at %q: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the reason, if any, and the cause.
func (e *ProvisionError) Unwrap() []error {
	if e.Reason == nil {
		return []error{e.Err}
	}
	return []error{e.Reason, e.Err}
}

// OutcomeMismatchError reports a scenario whose outcome was not the expected
// one. It is the regression signal the harness exists to produce.
type OutcomeMismatchError struct {
	Scenario Scenario
	Actual   Outcome
}

// Error implements error.Error.
func (e *OutcomeMismatchError) Error() string {
	return fmt.Sprintf("unexpected result at %v: expected %v, actual %v (%v)",
		e.Scenario.Location, e.Scenario.Expected, e.Actual, e.Scenario)
}

// CounterMismatchError reports filesystem quota counters that differ from
// the predicted state.
type CounterMismatchError struct {
	Location Location
	Want     Snapshot
	Got      Snapshot
}

// Error implements error.Error.
func (e *CounterMismatchError) Error() string {
	return fmt.Sprintf("bad quota counters at %v: %v, want %v", e.Location, e.Got, e.Want)
}
