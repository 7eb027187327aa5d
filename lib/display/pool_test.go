// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package display

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func newTestPool(t *testing.T, min, max Number) (*Pool, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	pool, err := NewPool(min, max, slog.New(slog.NewJSONHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewPool(%d, %d): %v", min, max, err)
	}
	return pool, &logs
}

func TestNewPoolRejectsEmptyRange(t *testing.T) {
	if _, err := NewPool(10, 9, nil); err == nil {
		t.Fatal("NewPool(10, 9) succeeded")
	}
}

func TestAllocateLowestFirst(t *testing.T) {
	pool, _ := newTestPool(t, 100, 104)

	for want := Number(100); want <= 104; want++ {
		got, err := pool.Allocate()
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		if got != want {
			t.Fatalf("Allocate = %d, want %d", got, want)
		}
	}

	pool.Release(102)
	pool.Release(101)
	if got, _ := pool.Allocate(); got != 101 {
		t.Fatalf("after releasing 101 and 102, Allocate = %d, want 101", got)
	}
	if got, _ := pool.Allocate(); got != 102 {
		t.Fatalf("second Allocate = %d, want 102", got)
	}
}

func TestAllocateExhausted(t *testing.T) {
	pool, _ := newTestPool(t, 100, 101)
	pool.Allocate()
	pool.Allocate()

	if _, err := pool.Allocate(); !errors.Is(err, ErrNoAvailableDisplay) {
		t.Fatalf("Allocate on full pool = %v, want ErrNoAvailableDisplay", err)
	}
	if pool.AllocatedCount() != 2 || pool.Capacity() != 2 {
		t.Fatalf("count=%d capacity=%d, want 2/2", pool.AllocatedCount(), pool.Capacity())
	}
}

func TestRangeEndingAtMaximumTerminates(t *testing.T) {
	pool, _ := newTestPool(t, 65534, 65535)
	pool.Allocate()
	pool.Allocate()
	if _, err := pool.Allocate(); !errors.Is(err, ErrNoAvailableDisplay) {
		t.Fatalf("Allocate = %v, want ErrNoAvailableDisplay", err)
	}
}

func TestReleaseUnheldWarns(t *testing.T) {
	pool, logs := newTestPool(t, 100, 105)
	number, _ := pool.Allocate()

	pool.Release(number)
	if logs.Len() != 0 {
		t.Fatalf("first release logged: %s", logs.String())
	}
	pool.Release(number)
	if !strings.Contains(logs.String(), "double release") {
		t.Fatalf("second release did not warn: %q", logs.String())
	}
	if pool.AllocatedCount() != 0 {
		t.Fatalf("AllocatedCount = %d after double release", pool.AllocatedCount())
	}
}

func TestConcurrentAllocateNeverDuplicates(t *testing.T) {
	pool, _ := newTestPool(t, 100, 599)

	results := make(chan Number, 600)
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := pool.Allocate()
			if err != nil {
				t.Errorf("Allocate: %v", err)
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[Number]bool)
	for number := range results {
		if seen[number] {
			t.Fatalf("display %d allocated twice", number)
		}
		seen[number] = true
	}
	if len(seen) != 500 {
		t.Fatalf("allocated %d distinct displays, want 500", len(seen))
	}
	if _, err := pool.Allocate(); !errors.Is(err, ErrNoAvailableDisplay) {
		t.Fatalf("501st Allocate = %v, want ErrNoAvailableDisplay", err)
	}
}

func TestNumberString(t *testing.T) {
	if got := Number(42).String(); got != ":42" {
		t.Fatalf("String() = %q, want :42", got)
	}
}
