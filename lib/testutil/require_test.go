// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// recordingTB captures Fatalf instead of stopping the test. Fatalf panics
// so the helper under test stops the same way t.Fatalf would.
type recordingTB struct {
	message string
}

type fatalSentinel struct{}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.message = fmt.Sprintf(format, args...)
	panic(fatalSentinel{})
}

func expectFatal(t *testing.T, recorder *recordingTB, run func()) {
	t.Helper()
	defer func() {
		recovered := recover()
		if _, ok := recovered.(fatalSentinel); !ok {
			t.Fatalf("expected Fatalf, recovered %v", recovered)
		}
	}()
	run()
}

func TestRequireReceiveValue(t *testing.T) {
	t.Parallel()
	ch := make(chan string, 1)
	ch <- "hello"
	if got := RequireReceive(t, ch, time.Second, "value"); got != "hello" {
		t.Errorf("got %q, want hello", got)
	}
}

func TestRequireReceiveClosedChannelFails(t *testing.T) {
	t.Parallel()
	ch := make(chan int)
	close(ch)
	recorder := &recordingTB{}
	expectFatal(t, recorder, func() {
		RequireReceive(recorder, ch, time.Second, "waiting for %s", "count")
	})
	if !strings.Contains(recorder.message, "waiting for count") {
		t.Errorf("message = %q", recorder.message)
	}
}

func TestRequireClosedTimesOut(t *testing.T) {
	t.Parallel()
	recorder := &recordingTB{}
	expectFatal(t, recorder, func() {
		RequireClosed(recorder, make(chan struct{}), 10*time.Millisecond, "never")
	})
	if !strings.Contains(recorder.message, "timed out") {
		t.Errorf("message = %q", recorder.message)
	}
}

func TestRequireEventually(t *testing.T) {
	t.Parallel()
	calls := 0
	RequireEventually(t, time.Second, func() bool {
		calls++
		return calls >= 3
	}, "third call")
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestUniqueIDIncreases(t *testing.T) {
	t.Parallel()
	first := UniqueID("name")
	second := UniqueID("name")
	if first == second {
		t.Errorf("UniqueID returned %q twice", first)
	}
	if !strings.HasPrefix(first, "name-") {
		t.Errorf("UniqueID = %q, want name- prefix", first)
	}
}
