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

package isolate

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// FaultError is returned by Guard when the guarded function faulted on a
// memory access.
type FaultError struct {
	// Addr is the faulting address.
	Addr uintptr

	// Err is the runtime error that reported the fault.
	Err error
}

// Error implements error.Error.
func (e *FaultError) Error() string {
	return fmt.Sprintf("memory fault at %#x: %v", e.Addr, e.Err)
}

// Unwrap returns the runtime error.
func (e *FaultError) Unwrap() error {
	return e.Err
}

// Guard calls fn and converts a memory fault in fn, such as SIGBUS on a
// hugetlbfs page that cannot be allocated, into a *FaultError. Other panics
// propagate. fn must fault on the calling goroutine.
func Guard(fn func() error) (err error) {
	old := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(old)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if re, ok := r.(runtime.Error); ok {
			if addr, ok := re.(interface{ Addr() uintptr }); ok {
				err = &FaultError{Addr: addr.Addr(), Err: re}
				return
			}
		}
		panic(r)
	}()
	return fn()
}
