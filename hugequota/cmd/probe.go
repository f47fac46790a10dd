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
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"github.com/google/subcommands"
	"gvisor.dev/hugequota/hugequota/config"
	"gvisor.dev/hugequota/pkg/hugetlb"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct{}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "print the huge page environment the script would run in"
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe - prints the huge page size, the pool counters and whether the
kernel reserves private mappings at mmap time. The last needs an existing
hugetlbfs mount, found through $HUGETLB_PATH or the mount table.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Probe) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Probe) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := probe(os.Stdout, conf.Host()); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

func probe(w io.Writer, host hugetlb.Host) error {
	pageSize, err := host.PageSize()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Huge page size: %s\n", units.BytesSize(float64(pageSize)))

	pool, err := host.ReadPool(pageSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Pool: %v\n", pool)

	file, err := hugetlb.UnlinkedFile()
	if errors.Is(err, hugetlb.ErrNoMount) {
		fmt.Fprintf(w, "Private reservations: unknown, %v\n", err)
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()
	resv, err := host.HasPrivateReservations(pageSize, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Private reservations: %t\n", resv)
	return nil
}
