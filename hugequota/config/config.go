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

// Package config provides basic infrastructure to set configuration settings
// for hugequota. hugequota uses command line flags to set configuration
// values, optionally overlaid by a TOML file.
package config

import (
	"fmt"

	"gvisor.dev/hugequota/pkg/hugetlb"
)

// Config holds configuration that is not part of the quota scenarios.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any necessary validation into validate().
//  5. If the flag must reach isolated children, add it to childFlags.
type Config struct {
	// ConfigFile is a TOML file whose flags table provides values for flags
	// not given on the command line.
	ConfigFile string `flag:"config"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format, "text" or "json".
	LogFormat string `flag:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// MountBase is the directory temporary mount points are created in.
	// Empty means the system temporary directory.
	MountBase string `flag:"mount-base"`

	// LockFile serializes harness runs on a host. They would otherwise
	// compete for the same huge page pool.
	LockFile string `flag:"lock-file"`

	// Runs is the number of times the script is run, each on a fresh mount.
	Runs int `flag:"runs"`

	// Meminfo is the path of /proc/meminfo.
	Meminfo string `flag:"meminfo"`

	// SysfsHugepages is the path of /sys/kernel/mm/hugepages.
	SysfsHugepages string `flag:"sysfs-hugepages"`
}

// childFlags lists the flags passed on to isolated children.
var childFlags = map[string]struct{}{
	"debug":      {},
	"log-format": {},
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	if c.Runs < 1 {
		return fmt.Errorf("--runs must be at least 1, got %d", c.Runs)
	}
	if c.LockFile == "" {
		return fmt.Errorf("--lock-file must be set")
	}
	return nil
}

// Host returns the host the configuration points at.
func (c *Config) Host() hugetlb.Host {
	return hugetlb.Host{Meminfo: c.Meminfo, SysfsDir: c.SysfsHugepages}
}
