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

// Package isolate runs functions in child processes so that a fatal fault in
// the function cannot take down the caller, and reports how the child
// terminated as one of exactly three results.
//
// Children are started by re-executing the current binary. Binaries (and
// tests) that start children must call Init first thing in main (or
// TestMain) and return if it reports true.
package isolate

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/docker/docker/pkg/reexec"
	"golang.org/x/sys/unix"
	"gvisor.dev/hugequota/pkg/log"
)

// Kind is how an isolated child terminated.
type Kind int

const (
	// Success means the child exited with status zero.
	Success Kind = iota

	// NonzeroExit means the child exited with a non-zero status.
	NonzeroExit

	// Signalled means the child was terminated by a signal.
	Signalled
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NonzeroExit:
		return "nonzero-exit"
	case Signalled:
		return "signalled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is the termination of an isolated child.
type Result struct {
	Kind Kind

	// ExitCode is the exit status, if Kind is not Signalled.
	ExitCode int

	// Signal is the terminating signal, if Kind is Signalled.
	Signal unix.Signal
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.Kind == Signalled {
		return fmt.Sprintf("%v (%v)", r.Kind, unix.SignalName(r.Signal))
	}
	return fmt.Sprintf("%v (%d)", r.Kind, r.ExitCode)
}

// FromWaitStatus classifies a wait status. Only statuses of terminated
// processes are valid.
func FromWaitStatus(ws unix.WaitStatus) (Result, error) {
	switch {
	case ws.Exited():
		if ws.ExitStatus() == 0 {
			return Result{Kind: Success}, nil
		}
		return Result{Kind: NonzeroExit, ExitCode: ws.ExitStatus()}, nil
	case ws.Signaled():
		return Result{Kind: Signalled, Signal: ws.Signal()}, nil
	default:
		return Result{}, fmt.Errorf("wait status %#x is not a termination", uint32(ws))
	}
}

// Run starts cmd and blocks until it terminates. The returned error reports
// only failures to start or wait for the child, never how it terminated.
//
// There is no timeout: a child that never terminates blocks Run forever.
func Run(cmd *exec.Cmd) (Result, error) {
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("starting %v: %w", cmd.Args, err)
	}
	log.Debugf("Started isolated child %q, PID %d", cmd.Args[0], cmd.Process.Pid)

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Result{}, fmt.Errorf("waiting for %v: %w", cmd.Args, err)
	}
	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return Result{}, fmt.Errorf("unexpected process state type %T", cmd.ProcessState.Sys())
	}
	res, err := FromWaitStatus(unix.WaitStatus(ws))
	if err != nil {
		return Result{}, err
	}
	log.Debugf("Isolated child %q, PID %d: %v", cmd.Args[0], cmd.Process.Pid, res)
	return res, nil
}

// Func is the body of an isolated child. args are the arguments that
// followed the child's name in Command.
type Func func(args []string) error

// Register makes fn runnable as a child under name. It must be called before
// Init, typically from an init function, and panics if name is taken.
//
// The child exits 0 if fn returns nil and 1 if it returns an error. A memory
// fault in fn kills the child with SIGBUS, and a *SignalError with its
// signal.
func Register(name string, fn Func) {
	reexec.Register(name, func() {
		os.Exit(runChild(name, fn, os.Args[1:]))
	})
}

// SignalError is returned by a child body that must terminate by Signal
// rather than exit, as a C program dereferencing a failed mapping would.
type SignalError struct {
	Signal unix.Signal
	Err    error
}

// Error implements error.Error.
func (e *SignalError) Error() string {
	return fmt.Sprintf("%v (terminating with %s)", e.Err, unix.SignalName(e.Signal))
}

// Unwrap returns the cause.
func (e *SignalError) Unwrap() error {
	return e.Err
}

func runChild(name string, fn Func, args []string) int {
	err := Guard(func() error { return fn(args) })
	var fault *FaultError
	if errors.As(err, &fault) {
		log.Infof("%s: %v", name, err)
		DieFromSignal(unix.SIGBUS)
	}
	var sigErr *SignalError
	if errors.As(err, &sigErr) {
		log.Infof("%s: %v", name, err)
		DieFromSignal(sigErr.Signal)
	}
	if err != nil {
		log.Infof("%s: %v", name, err)
		return 1
	}
	return 0
}

// Init runs the registered child named by os.Args[0], if any, and reports
// whether it did. Children normally exit from Init.
func Init() bool {
	return reexec.Init()
}

// Command returns a command that runs the child registered as name with the
// given arguments. The child inherits the environment and is killed if the
// calling thread dies.
func Command(name string, args ...string) *exec.Cmd {
	return reexec.Command(append([]string{name}, args...)...)
}
