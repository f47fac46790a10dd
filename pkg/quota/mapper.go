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
	"flag"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
	"gvisor.dev/hugequota/pkg/isolate"
	"gvisor.dev/hugequota/pkg/log"
)

const (
	// mapChild is the isolated child that performs a scenario.
	mapChild = "hugequota-map"

	// backingFD is the descriptor of the backing file in the child, the
	// first of exec.Cmd.ExtraFiles.
	backingFD = 3
)

// mmap is unix.Mmap, replaced in tests.
var mmap = unix.Mmap

func init() {
	isolate.Register(mapChild, mapMain)
}

// mapArgs returns the child arguments describing sc.
func mapArgs(pageSize uint64, sc Scenario) []string {
	args := []string{
		"-page-size=" + strconv.FormatUint(pageSize, 10),
		"-pages=" + strconv.FormatUint(sc.Pages, 10),
		"-mode=" + sc.Mode.String(),
	}
	if sc.Actions.Has(Touch) {
		args = append(args, "-touch")
	}
	if sc.Actions.Has(CopyOnWrite) {
		args = append(args, "-cow")
	}
	return args
}

// mapMain is the body of the scenario child.
func mapMain(args []string) error {
	fs := flag.NewFlagSet(mapChild, flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging.")
	logFormat := fs.String("log-format", "text", "log format: text (default) or json.")
	pageSize := fs.Uint64("page-size", 0, "huge page size in bytes.")
	pages := fs.Uint64("pages", 0, "mapping size in huge pages.")
	mode := fs.String("mode", "", "mapping mode: private or shared.")
	touch := fs.Bool("touch", false, "write to every page of the mapping.")
	cow := fs.Bool("cow", false, "force a copy-on-write of the first page.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := log.NewEmitter(*logFormat, os.Stderr)
	if err != nil {
		return err
	}
	log.SetTarget(e)
	if *debug {
		log.SetLevel(log.Debug)
	}

	m, err := ParseMode(*mode)
	if err != nil {
		return err
	}
	if *pageSize == 0 || *pages == 0 {
		return fmt.Errorf("invalid mapping size: %d page(s) of %d bytes", *pages, *pageSize)
	}
	var actions Action
	if *touch {
		actions |= Touch
	}
	if *cow {
		actions |= CopyOnWrite
	}

	f := os.NewFile(backingFD, "backing file")
	if f == nil {
		return errors.New("backing file descriptor is invalid")
	}
	return mapAndRelease(f, *pageSize, Scenario{Pages: *pages, Mode: m, Actions: actions})
}

// mapAndRelease performs sc on f and releases every mapping and f. Faults on
// pages that cannot be instantiated are not handled here.
func mapAndRelease(f *os.File, pageSize uint64, sc Scenario) error {
	views, err := mapScenario(int(f.Fd()), pageSize, sc)
	for i := len(views) - 1; i >= 0; i-- {
		if uerr := unix.Munmap(views[i]); uerr != nil && err == nil {
			err = fmt.Errorf("munmap: %w", uerr)
		}
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close: %w", cerr)
	}
	return err
}

// mapScenario maps, touches and copies as sc says. It returns the mappings
// created, even on error.
func mapScenario(fd int, pageSize uint64, sc Scenario) ([][]byte, error) {
	size := int(sc.Pages * pageSize)
	const prot = unix.PROT_READ | unix.PROT_WRITE

	p, err := mmap(fd, 0, size, prot, sc.Mode.mmapFlags())
	if err != nil {
		return nil, fmt.Errorf("mmap(%d bytes, %v) failed: %w", size, sc.Mode, err)
	}
	views := [][]byte{p}
	log.Debugf("Mapped %d bytes %v", size, sc.Mode)

	if sc.Actions.Has(Touch) {
		for off := 0; off < size; off += int(pageSize) {
			p[off] = 1
		}
		log.Debugf("Touched %d page(s)", sc.Pages)
	}

	if sc.Actions.Has(CopyOnWrite) {
		c, err := mmap(fd, 0, size, prot, unix.MAP_PRIVATE)
		if err != nil {
			// A refused copy-on-write mapping is the quota failing the copy,
			// same as a fault on it when reservations are lazy.
			return views, &isolate.SignalError{
				Signal: unix.SIGSEGV,
				Err:    fmt.Errorf("creating copy-on-write mapping failed: %w", err),
			}
		}
		views = append(views, c)
		if c[0] != 1 {
			return views, fmt.Errorf("data mismatch when setting up copy-on-write: read %d, want 1", c[0])
		}
		c[0] = 0
		log.Debugf("Copied first page on write")
	}
	return views, nil
}
