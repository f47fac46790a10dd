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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"gvisor.dev/hugequota/hugequota/config"
	"gvisor.dev/hugequota/pkg/log"
	"gvisor.dev/hugequota/pkg/quota"
)

// Run implements subcommands.Command for the "run" command.
type Run struct{}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run the quota script on fresh hugetlbfs mounts"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run - mounts a one page hugetlbfs quota, maps, touches and copies pages
in isolated children and checks every outcome and quota counter.

Requires root or CAP_SYS_ADMIN and at least one free huge page. Exits 0 if
every run passed and 1 at the first failure.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Run) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	childOutput := args[1].(io.Writer)

	// Runs on one host compete for the same huge page pool.
	lock := flock.New(conf.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return Errorf("setup failed: locking %q: %v", conf.LockFile, err)
	}
	if !locked {
		return Errorf("setup failed: another run holds %q", conf.LockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warningf("Unlocking %q: %v", conf.LockFile, err)
		}
	}()

	host := conf.Host()
	pageSize, err := quota.NewPreflight(host).Check()
	if err != nil {
		return Errorf("%v", err)
	}

	h := &quota.Harness{
		Host:       host,
		BaseDir:    conf.MountBase,
		ChildFlags: conf.ChildFlags(),
		Stderr:     childOutput,
	}
	reps, err := h.Run(pageSize, conf.Runs)
	if err != nil {
		return Errorf("%v", err)
	}
	fmt.Fprintf(os.Stdout, "PASS: %d run(s) of %d steps\n", len(reps), len(reps[0].Steps))
	return subcommands.ExitSuccess
}
