// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package display hands out X display numbers to sessions.
//
// A [Pool] is the only record of which numbers are in use. Allocation
// always returns the lowest free number so that repeated start/stop
// cycles keep reusing the same small set of sockets under /tmp/.X11-unix.
package display

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Number is an X display number (the N in ":N").
type Number uint16

// String renders the display as the DISPLAY variable spells it.
func (n Number) String() string {
	return fmt.Sprintf(":%d", uint16(n))
}

// ErrNoAvailableDisplay is returned by [Pool.Allocate] when every number
// in the range is held.
var ErrNoAvailableDisplay = errors.New("no available display")

// Pool tracks held display numbers in the inclusive range [min, max].
type Pool struct {
	min, max Number
	logger   *slog.Logger

	mu   sync.Mutex
	held map[Number]struct{}
}

// NewPool creates an empty pool. min must not exceed max.
func NewPool(min, max Number, logger *slog.Logger) (*Pool, error) {
	if min > max {
		return nil, fmt.Errorf("display range %d..%d is empty", min, max)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		min:    min,
		max:    max,
		logger: logger,
		held:   make(map[Number]struct{}),
	}, nil
}

// Allocate reserves and returns the lowest number not currently held.
func (p *Pool) Allocate() (Number, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Iterate in int so a range ending at 65535 terminates.
	for candidate := int(p.min); candidate <= int(p.max); candidate++ {
		number := Number(candidate)
		if _, taken := p.held[number]; !taken {
			p.held[number] = struct{}{}
			return number, nil
		}
	}
	return 0, ErrNoAvailableDisplay
}

// Release returns n to the pool. Releasing a number that is not held is
// logged and otherwise ignored.
func (p *Pool) Release(n Number) {
	p.mu.Lock()
	_, held := p.held[n]
	delete(p.held, n)
	p.mu.Unlock()

	if !held {
		p.logger.Warn("releasing display that is not held (double release or foreign number)",
			"display", uint16(n))
	}
}

// Held reports whether n is currently allocated.
func (p *Pool) Held(n Number) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, held := p.held[n]
	return held
}

// AllocatedCount returns the number of held displays.
func (p *Pool) AllocatedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held)
}

// Capacity returns the size of the range.
func (p *Pool) Capacity() int {
	return int(p.max) - int(p.min) + 1
}

// Range returns the configured bounds.
func (p *Pool) Range() (min, max Number) {
	return p.min, p.max
}
