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

package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gvisor.dev/hugequota/pkg/hugetlb"
)

// lockFilename is the default lock file name, in the temporary directory.
const lockFilename = "hugequota.lock"

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file providing values for flags not set on the command line.")

	// Debugging flags.
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.Bool("debug", false, "enable debug logging.")

	// Flags that control the harness.
	flagSet.String("mount-base", "", "directory temporary hugetlbfs mount points are created in, default is the system temporary directory.")
	flagSet.String("lock-file", "", "file locked for the duration of a run so that runs on one host do not overlap.")
	flagSet.Int("runs", 1, "number of times the script is run, each on a fresh mount.")

	// Flags that locate host interfaces, for testing.
	flagSet.String("meminfo", hugetlb.DefaultMeminfo, "path of the meminfo file.")
	flagSet.String("sysfs-hugepages", hugetlb.DefaultSysfsDir, "path of the sysfs huge page pools directory.")
}

// fileConfig is the layout of the file named by --config.
type fileConfig struct {
	// Flags holds flag values. The key value will be converted to flags
	// --key=value directly.
	Flags map[string]string `toml:"flags"`
}

// LoadFile sets the flags in the file at path that were not set on the
// command line.
func LoadFile(flagSet *flag.FlagSet, path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("loading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %q: unknown keys %v", path, undecoded)
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name, value := range fc.Flags {
		if name == "config" {
			return fmt.Errorf("config file %q: flag %q cannot be set from a file", path, name)
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			return fmt.Errorf("config file %q: flag %q not found", path, name)
		}
		if set[name] {
			continue
		}
		if err := fl.Value.Set(value); err != nil {
			return fmt.Errorf("config file %q: setting flag %s=%q: %w", path, name, value, err)
		}
	}
	return nil
}

// NewFromFlags creates a new Config with values coming from command line
// flags, overlaid by the file named by --config.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	if fl := flagSet.Lookup("config"); fl != nil && fl.Value.String() != "" {
		if err := LoadFile(flagSet, fl.Value.String()); err != nil {
			return nil, err
		}
	}

	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(fl.Value.(flag.Getter).Get())
		obj.Field(i).Set(x)
	}

	if len(conf.LockFile) == 0 {
		conf.LockFile = filepath.Join(os.TempDir(), lockFilename)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string

	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		val := getVal(obj.Field(i))

		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
	}
	return rv
}

// ChildFlags returns the subset of ToFlags understood by isolated children.
func (c *Config) ChildFlags() []string {
	var rv []string
	for _, f := range c.ToFlags() {
		name, _, _ := strings.Cut(strings.TrimPrefix(f, "--"), "=")
		if _, ok := childFlags[name]; ok {
			rv = append(rv, f)
		}
	}
	return rv
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
