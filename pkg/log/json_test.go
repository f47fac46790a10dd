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
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONEmitter(t *testing.T) {
	for _, tc := range []struct {
		level Level
		want  string
	}{
		{Warning, "warning"},
		{Info, "info"},
		{Debug, "debug"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			tw := &testWriter{}
			l := &BasicLogger{Level: Debug, Emitter: JSONEmitter{&Writer{Next: tw}}}
			switch tc.level {
			case Warning:
				l.Warningf("pages=%d", 2)
			case Info:
				l.Infof("pages=%d", 2)
			case Debug:
				l.Debugf("pages=%d", 2)
			}
			if len(tw.lines) != 1 {
				t.Fatalf("got %d lines, want 1: %q", len(tw.lines), tw.lines)
			}

			var entry struct {
				Msg    string `json:"msg"`
				Level  string `json:"level"`
				Time   string `json:"time"`
				Caller string `json:"caller"`
			}
			if err := json.Unmarshal([]byte(tw.lines[0]), &entry); err != nil {
				t.Fatalf("unmarshal %q: %v", tw.lines[0], err)
			}
			if entry.Msg != "pages=2" {
				t.Errorf("msg = %q, want %q", entry.Msg, "pages=2")
			}
			if entry.Level != tc.want {
				t.Errorf("level = %q, want %q", entry.Level, tc.want)
			}
			if !strings.HasPrefix(entry.Caller, "json_test.go:") {
				t.Errorf("caller = %q, want json_test.go:<line>", entry.Caller)
			}
			if _, err := time.Parse(time.RFC3339Nano, entry.Time); err != nil {
				t.Errorf("time %q: %v", entry.Time, err)
			}
		})
	}
}

func TestNewEmitter(t *testing.T) {
	for _, tc := range []struct {
		format string
		json   bool
	}{
		{"text", false},
		{"json", true},
	} {
		tw := &testWriter{}
		e, err := NewEmitter(tc.format, tw)
		if err != nil {
			t.Fatalf("NewEmitter(%q) failed: %v", tc.format, err)
		}
		(&BasicLogger{Level: Info, Emitter: e}).Infof("hello")
		if len(tw.lines) != 1 {
			t.Fatalf("NewEmitter(%q): got %d lines, want 1", tc.format, len(tw.lines))
		}
		if got := json.Valid([]byte(tw.lines[0])); got != tc.json {
			t.Errorf("NewEmitter(%q) wrote %q, JSON %t, want %t", tc.format, tw.lines[0], got, tc.json)
		}
	}
	if _, err := NewEmitter("json-k8s", &testWriter{}); err == nil {
		t.Errorf("NewEmitter(json-k8s) succeeded")
	}
}
