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

package hugetlb

import (
	"errors"
	"fmt"
	"os"

	"github.com/moby/sys/mountinfo"
	"gvisor.dev/hugequota/pkg/log"
)

// PathEnv names the environment variable selecting the hugetlbfs mount that
// UnlinkedFile allocates from. It is inherited by child processes.
const PathEnv = "HUGETLB_PATH"

// ErrNoMount is returned when no hugetlbfs mount can be found.
var ErrNoMount = errors.New("no hugetlbfs mount found")

// Dir returns the directory new hugetlbfs files are created in: the value of
// PathEnv if set, otherwise the first hugetlbfs mount on the host.
func Dir() (string, error) {
	if dir := os.Getenv(PathEnv); dir != "" {
		return dir, nil
	}
	mounts, err := mountinfo.GetMounts(mountinfo.FSTypeFilter("hugetlbfs"))
	if err != nil {
		return "", fmt.Errorf("reading mountinfo: %w", err)
	}
	if len(mounts) == 0 {
		return "", ErrNoMount
	}
	log.Debugf("%s not set, using hugetlbfs mount %q", PathEnv, mounts[0].Mountpoint)
	return mounts[0].Mountpoint, nil
}

// UnlinkedFile returns a new, already unlinked file in the hugetlbfs mount
// selected by Dir. The file is freed once every descriptor and mapping of it
// is gone.
func UnlinkedFile() (*os.File, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return UnlinkedFileIn(dir)
}

// UnlinkedFileIn is like UnlinkedFile, but allocates in dir.
func UnlinkedFileIn(dir string) (*os.File, error) {
	f, err := os.CreateTemp(dir, "hugequota.tmp.")
	if err != nil {
		return nil, fmt.Errorf("creating file in %q: %w", dir, err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("unlinking %q: %w", f.Name(), err)
	}
	return f, nil
}
