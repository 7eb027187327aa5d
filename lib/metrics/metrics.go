// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics counts session lifecycle events.
//
// Each counter is its own atomic; there is no lock across them, so a
// [Snapshot] taken during a transition may see one counter updated and
// not yet another. Every counter is monotone except active, which the
// supervisor increments once at start and decrements once at the
// terminal transition.
package metrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/infractura/ssh-desktop/lib/clock"
)

// Registry holds the process-wide counters.
type Registry struct {
	clock     clock.Clock
	startedAt time.Time

	total     atomic.Uint64
	active    atomic.Int64
	failed    atomic.Uint64
	idle      atomic.Uint64
	completed atomic.Uint64
}

// New returns a registry whose uptime is measured from now on clk.
func New(clk clock.Clock) *Registry {
	return &Registry{clock: clk, startedAt: clk.Now()}
}

// RecordStart counts a session about to be spawned.
func (r *Registry) RecordStart() {
	r.total.Add(1)
	r.active.Add(1)
}

// RecordSuccess counts a session that ended normally or was stopped.
func (r *Registry) RecordSuccess() {
	r.completed.Add(1)
	r.active.Add(-1)
}

// RecordFailure counts a session that failed to start or died.
func (r *Registry) RecordFailure() {
	r.failed.Add(1)
	r.active.Add(-1)
}

// RecordIdleTermination counts a session ended by the idle sweep.
func (r *Registry) RecordIdleTermination() {
	r.idle.Add(1)
	r.active.Add(-1)
}

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	TotalSessions     uint64 `json:"total_sessions" cbor:"total_sessions"`
	ActiveSessions    int64  `json:"active_sessions" cbor:"active_sessions"`
	FailedSessions    uint64 `json:"failed_sessions" cbor:"failed_sessions"`
	IdleTerminations  uint64 `json:"idle_terminations" cbor:"idle_terminations"`
	CompletedSessions uint64 `json:"completed_sessions" cbor:"completed_sessions"`
	UptimeSeconds     uint64 `json:"uptime_seconds" cbor:"uptime_seconds"`
}

// Snapshot reads the counters.
func (r *Registry) Snapshot() Snapshot {
	uptime := r.clock.Now().Sub(r.startedAt)
	if uptime < 0 {
		uptime = 0
	}
	return Snapshot{
		TotalSessions:     r.total.Load(),
		ActiveSessions:    r.active.Load(),
		FailedSessions:    r.failed.Load(),
		IdleTerminations:  r.idle.Load(),
		CompletedSessions: r.completed.Load(),
		UptimeSeconds:     uint64(uptime / time.Second),
	}
}

// Uptime renders UptimeSeconds as "1d 2h 3m 4s", dropping leading zero
// units.
func (s Snapshot) Uptime() string {
	return FormatDuration(time.Duration(s.UptimeSeconds) * time.Second)
}

// FormatDuration renders d at second granularity with the largest
// non-zero unit first.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	days := seconds / 86400
	hours := seconds % 86400 / 3600
	minutes := seconds % 3600 / 60
	seconds %= 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
