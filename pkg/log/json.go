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

package log

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// jsonFormatter renders entries for JSONEmitter.
var jsonFormatter = &logrus.JSONFormatter{
	TimestampFormat: time.RFC3339Nano,
}

// logrusLevel maps a Level to the equivalent logrus level.
func (l Level) logrusLevel() logrus.Level {
	switch l {
	case Warning:
		return logrus.WarnLevel
	case Debug:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// JSONEmitter logs messages in json format.
type JSONEmitter struct {
	*Writer
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	file, line := callerAt(depth + 1)
	entry := &logrus.Entry{
		Data:    logrus.Fields{"caller": fmt.Sprintf("%s:%d", file, line)},
		Time:    timestamp,
		Level:   level.logrusLevel(),
		Message: fmt.Sprintf(format, v...),
	}
	b, err := jsonFormatter.Format(entry)
	if err != nil {
		panic(err)
	}
	e.Writer.Write(b)
}
