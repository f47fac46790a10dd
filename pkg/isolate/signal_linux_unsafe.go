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

//go:build linux

package isolate

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigaction is the kernel's struct sigaction. The zero value is SIG_DFL
// with no flags and an empty mask.
type sigaction struct {
	handler  uintptr
	flags    uint64
	restorer uintptr
	mask     uint64
}

// DieFromSignal kills the calling process with sig under the signal's
// default disposition, bypassing the Go runtime's handler. It does not
// return.
//
// Core dumps are disabled first: a child that is expected to die must not
// leave cores behind.
func DieFromSignal(sig unix.Signal) {
	runtime.LockOSThread()

	_ = unix.Setrlimit(unix.RLIMIT_CORE, &unix.Rlimit{})

	var sa sigaction
	const maskLen = 8
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), uintptr(unsafe.Pointer(&sa)), 0, maskLen, 0, 0); e == 0 {
		var set unix.Sigset_t
		bit := uint(sig) - 1
		set.Val[bit/64] |= 1 << (bit % 64)
		_ = unix.PthreadSigmask(unix.SIG_UNBLOCK, &set, nil)
		_ = unix.Tgkill(unix.Getpid(), unix.Gettid(), sig)
	}

	// Still alive: the handler could not be reset, or the signal was
	// ignored. SIGKILL still reports termination by signal.
	_ = unix.Kill(unix.Getpid(), unix.SIGKILL)
	panic("unreachable")
}
