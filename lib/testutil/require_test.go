// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type recordingT struct {
	failures []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestRequireReceiveReturnsValue(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "buffered value"); got != 7 {
		t.Fatalf("RequireReceive = %d, want 7", got)
	}
}

func TestRequireReceiveReportsClosedChannel(t *testing.T) {
	recorder := &recordingT{}
	ch := make(chan int)
	close(ch)
	RequireReceive(recorder, ch, time.Second, "reading %s", "results")
	if len(recorder.failures) != 1 || !strings.Contains(recorder.failures[0], "reading results") {
		t.Fatalf("failures = %q", recorder.failures)
	}
}

func TestRequireReceiveTimesOut(t *testing.T) {
	recorder := &recordingT{}
	RequireReceive(recorder, make(chan string), 10*time.Millisecond)
	if len(recorder.failures) != 1 || !strings.Contains(recorder.failures[0], "timed out") {
		t.Fatalf("failures = %q", recorder.failures)
	}
}

func TestRequireClosed(t *testing.T) {
	done := make(chan struct{})
	RequireNotClosed(t, done, "fresh channel")
	close(done)
	RequireClosed(t, done, time.Second, "closed channel")

	recorder := &recordingT{}
	RequireNotClosed(recorder, done)
	if len(recorder.failures) != 1 {
		t.Fatalf("RequireNotClosed on closed channel recorded %d failures", len(recorder.failures))
	}
}

func TestUniqueIDDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := UniqueID("user")
		if seen[id] {
			t.Fatalf("UniqueID repeated %q", id)
		}
		seen[id] = true
	}
}
