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

// Package cmd holds implementations of the hugequota commands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/hugequota/pkg/log"
)

// ErrorLogger is where error messages should be written to, in addition to
// stderr. It is typically the file named by --log.
var ErrorLogger io.Writer

// Errorf logs an error to the error logger and stderr, and returns
// subcommands.ExitFailure.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	writeError(fmt.Sprintf(format, args...))
	return subcommands.ExitFailure
}

// Fatalf logs an error the same way as Errorf and exits with status
// subcommands.ExitFailure.
func Fatalf(format string, args ...any) {
	writeError(fmt.Sprintf(format, args...))
	os.Exit(int(subcommands.ExitFailure))
}

// UsageFatalf logs an error the same way as Errorf and exits with status
// subcommands.ExitUsageError.
func UsageFatalf(format string, args ...any) {
	writeError(fmt.Sprintf(format, args...))
	os.Exit(int(subcommands.ExitUsageError))
}

func writeError(msg string) {
	log.Warningf("FATAL ERROR: %s", msg)
	fmt.Fprintln(os.Stderr, msg)
	if ErrorLogger != nil {
		fmt.Fprintf(ErrorLogger, "%s error: %s\n", time.Now().Format(time.RFC3339Nano), msg)
	}
}
