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
	"io"
	"os"

	"gvisor.dev/hugequota/pkg/hugetlb"
	"gvisor.dev/hugequota/pkg/isolate"
	"gvisor.dev/hugequota/pkg/log"
)

// Executor runs scenarios in isolated children and classifies how they
// terminate.
type Executor struct {
	env Env

	// Open returns the file a scenario maps. The file is passed to the child
	// and closed once the child terminates. Defaults to hugetlb.UnlinkedFile,
	// which allocates on the mount installed by Provisioner.Create.
	Open func() (*os.File, error)

	// ChildFlags are passed to every child ahead of the scenario, e.g. to
	// configure its logging.
	ChildFlags []string

	// Stderr receives the children's output. nil discards it.
	Stderr io.Writer

	// child is the registered child that performs scenarios.
	child string
}

// NewExecutor returns an Executor for the mount in env.
func NewExecutor(env Env) *Executor {
	return &Executor{env: env, Open: hugetlb.UnlinkedFile, child: mapChild}
}

// Run runs sc in a fresh child and blocks until it terminates. The returned
// error reports failures to run the child at all, never a scenario failure.
func (e *Executor) Run(sc Scenario) (Outcome, error) {
	if sc.Pages == 0 {
		return 0, errors.New("scenario maps zero pages")
	}
	f, err := e.Open()
	if err != nil {
		return 0, fmt.Errorf("obtaining backing file: %w", err)
	}
	// The child holds its own reference; closing ours once it terminated
	// drops the last one.
	defer f.Close()

	args := append(append([]string(nil), e.ChildFlags...), mapArgs(e.env.PageSize, sc)...)
	cmd := isolate.Command(e.child, args...)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Stdout = e.Stderr
	cmd.Stderr = e.Stderr

	log.Debugf("Running %v, expecting %v", sc, sc.Expected)
	res, err := isolate.Run(cmd)
	if err != nil {
		return 0, err
	}
	return outcomeOf(res)
}
