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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
	"gvisor.dev/hugequota/pkg/cleanup"
	"gvisor.dev/hugequota/pkg/hugetlb"
	"gvisor.dev/hugequota/pkg/log"
)

const (
	// unmountRetryInterval is the delay between unmount attempts while the
	// mount is busy.
	unmountRetryInterval = 100 * time.Millisecond

	// defaultBusyTimeout bounds how long Destroy waits for a busy mount.
	defaultBusyTimeout = 5 * time.Second
)

// Mount is a quota-limited hugetlbfs instance created by a Provisioner.
type Mount struct {
	// Path is the mount point.
	Path string

	// Capacity is the quota in bytes, a whole number of huge pages.
	Capacity uint64
	PageSize uint64

	prevPath  string
	hadPrev   bool
	destroyed bool
}

// Pages returns the quota in huge pages.
func (m *Mount) Pages() uint64 {
	return m.Capacity / m.PageSize
}

// Env returns the harness environment for the mount.
func (m *Mount) Env() Env {
	return Env{PageSize: m.PageSize, MountPath: m.Path}
}

// Provisioner creates and destroys quota-limited hugetlbfs mounts.
type Provisioner struct {
	// PageSize is the huge page size in bytes.
	PageSize uint64

	// BaseDir is where mount points are created. Empty means os.TempDir().
	BaseDir string

	// BusyTimeout bounds how long Destroy retries a busy unmount.
	BusyTimeout time.Duration

	mount   func(source, target, fstype string, flags uintptr, data string) error
	unmount func(target string, flags int) error
	statfs  func(path string, buf *unix.Statfs_t) error
	mounted func(path string) (bool, error)
}

// NewProvisioner returns a Provisioner for the given huge page size.
func NewProvisioner(pageSize uint64, baseDir string) *Provisioner {
	return &Provisioner{
		PageSize:    pageSize,
		BaseDir:     baseDir,
		BusyTimeout: defaultBusyTimeout,
		mount:       unix.Mount,
		unmount:     unix.Unmount,
		statfs:      unix.Statfs,
		mounted:     mountinfo.Mounted,
	}
}

// mountData returns the hugetlbfs mount options for a quota of capacity
// bytes.
func mountData(capacity uint64) string {
	return fmt.Sprintf("size=%dK", capacity/1024)
}

// provisionError classifies err from op on path.
func provisionError(op, path string, err error) *ProvisionError {
	pe := &ProvisionError{Op: op, Path: path, Err: err}
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		pe.Reason = ErrPrivilege
	case errors.Is(err, unix.ENODEV):
		pe.Reason = ErrUnsupported
	}
	return pe
}

// Create mounts a fresh hugetlbfs instance limited to capacity bytes and
// makes it the target for hugetlb.UnlinkedFile. capacity is rounded down to
// whole huge pages and must be at least one page.
//
// On failure nothing created by Create is left behind.
func (p *Provisioner) Create(capacity uint64) (*Mount, error) {
	if p.PageSize == 0 {
		return nil, &ProvisionError{Op: "quantize", Err: errors.New("huge page size is zero")}
	}
	pages := capacity / p.PageSize
	if pages == 0 {
		return nil, &ProvisionError{
			Op:  "quantize",
			Err: fmt.Errorf("capacity of %d bytes is less than one %s page", capacity, units.BytesSize(float64(p.PageSize))),
		}
	}
	capacity = pages * p.PageSize

	dir, err := os.MkdirTemp(p.BaseDir, "huge-")
	if err != nil {
		return nil, provisionError("mkdir", p.BaseDir, err)
	}
	cu := cleanup.Make(func() {
		if err := os.Remove(dir); err != nil {
			log.Warningf("Removing %q: %v", dir, err)
		}
	})
	defer cu.Clean()

	if err := p.mount("none", dir, "hugetlbfs", 0, mountData(capacity)); err != nil {
		return nil, provisionError("mount", dir, err)
	}
	cu.Add(func() {
		if err := p.unmount(dir, 0); err != nil {
			log.Warningf("Unmounting %q: %v", dir, err)
		}
	})

	var st unix.Statfs_t
	if err := p.statfs(dir, &st); err != nil {
		return nil, provisionError("statfs", dir, err)
	}
	if st.Type != unix.HUGETLBFS_MAGIC {
		return nil, &ProvisionError{
			Op:     "statfs",
			Path:   dir,
			Reason: ErrUnsupported,
			Err:    fmt.Errorf("filesystem magic %#x is not hugetlbfs", st.Type),
		}
	}
	if uint64(st.Bsize) != p.PageSize {
		return nil, &ProvisionError{
			Op:   "statfs",
			Path: dir,
			Err:  fmt.Errorf("block size %d differs from huge page size %d", st.Bsize, p.PageSize),
		}
	}

	m := &Mount{Path: dir, Capacity: capacity, PageSize: p.PageSize}
	m.prevPath, m.hadPrev = os.LookupEnv(hugetlb.PathEnv)
	if err := os.Setenv(hugetlb.PathEnv, dir); err != nil {
		return nil, provisionError("setenv", dir, err)
	}

	cu.Release()
	log.Infof("Using %s as temporary mount point, quota %d page(s) of %s", dir, pages, units.BytesSize(float64(p.PageSize)))
	return m, nil
}

// Destroy unmounts m, removes its mount point and restores the allocation
// target. Destroy is idempotent and tolerates a mount that is already gone.
// After a failure, calling Destroy again retries the teardown.
func (p *Provisioner) Destroy(m *Mount) error {
	if m == nil || m.destroyed {
		return nil
	}
	var errs *multierror.Error
	if err := p.unmountRetry(m.Path); err != nil {
		errs = multierror.Append(errs, err)
	} else if err := os.Remove(m.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = multierror.Append(errs, fmt.Errorf("removing mount point: %w", err))
	}

	var err error
	if m.hadPrev {
		err = os.Setenv(hugetlb.PathEnv, m.prevPath)
	} else {
		err = os.Unsetenv(hugetlb.PathEnv)
	}
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("restoring %s: %w", hugetlb.PathEnv, err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		// Left for a later Destroy to retry.
		return err
	}
	m.destroyed = true
	log.Debugf("Destroyed hugetlbfs mount %s", m.Path)
	return nil
}

// unmountRetry unmounts path, retrying while the mount is busy.
func (p *Provisioner) unmountRetry(path string) error {
	mounted, err := p.mounted(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking mount %q: %w", path, err)
	}
	if !mounted {
		log.Debugf("%s is not mounted, skipping unmount", path)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.BusyTimeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(unmountRetryInterval), ctx)
	op := func() error {
		err := p.unmount(path, 0)
		switch {
		case err == nil, errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOENT):
			return nil
		case errors.Is(err, unix.EBUSY):
			log.Debugf("Mount %s is busy, retrying", path)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("unmounting %q: %w", path, err)
	}
	return nil
}
