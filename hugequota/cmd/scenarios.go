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
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/hugequota/pkg/quota"
)

// Scenarios implements subcommands.Command for the "scenarios" command.
type Scenarios struct {
	privateResv bool
}

// Name implements subcommands.Command.Name.
func (*Scenarios) Name() string {
	return "scenarios"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Scenarios) Synopsis() string {
	return "list the steps of the quota script"
}

// Usage implements subcommands.Command.Usage.
func (*Scenarios) Usage() string {
	return "scenarios [-private-reservations]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Scenarios) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&s.privateResv, "private-reservations", false, "list the script for a kernel that reserves private mappings at mmap time.")
}

// Execute implements subcommands.Command.Execute.
func (s *Scenarios) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err := listSteps(os.Stdout, quota.Steps(s.privateResv)); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

func listSteps(out io.Writer, steps []quota.Step) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "STEP\tPAGES\tMODE\tACTIONS\tEXPECTED\tQUOTA AFTER\tDECLARED\n")
	for i, st := range steps {
		after := "-"
		if st.After != nil {
			after = st.After.String()
		}
		fmt.Fprintf(w, "%d\t%d\t%v\t%v\t%v\t%s\t%v\n", i+1, st.Pages, st.Mode, st.Actions, st.Expected, after, st.Location)
	}
	return w.Flush()
}
