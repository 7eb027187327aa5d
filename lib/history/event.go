// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"time"

	"github.com/infractura/ssh-desktop/lib/metrics"
)

// EventType names a lifecycle transition in the journal.
type EventType string

const (
	EventCreated     EventType = "created"
	EventTerminated  EventType = "terminated"
	EventFailed      EventType = "failed"
	EventIdleTimeout EventType = "idle_timeout"
	EventKilled      EventType = "killed"
)

// Ends reports whether the event closes a session.
func (t EventType) Ends() bool {
	switch t {
	case EventTerminated, EventFailed, EventIdleTimeout, EventKilled:
		return true
	}
	return false
}

// Event is one journal entry. Display and Port are zero for sessions
// that hold neither.
type Event struct {
	Timestamp time.Time `cbor:"timestamp" json:"timestamp"`
	Type      EventType `cbor:"type" json:"type"`
	SessionID string    `cbor:"session_id" json:"session_id"`
	User      string    `cbor:"user" json:"user"`
	Kind      string    `cbor:"kind,omitempty" json:"kind,omitempty"`
	Display   uint16    `cbor:"display,omitempty" json:"display,omitempty"`
	Port      uint16    `cbor:"port,omitempty" json:"port,omitempty"`
	Error     string    `cbor:"error,omitempty" json:"error,omitempty"`
}

// SessionSummary is the per-session part of a metrics record.
type SessionSummary struct {
	SessionID   string `cbor:"session_id" json:"session_id"`
	User        string `cbor:"user" json:"user"`
	Kind        string `cbor:"kind" json:"kind"`
	State       string `cbor:"state" json:"state"`
	Display     uint16 `cbor:"display,omitempty" json:"display,omitempty"`
	IdleSeconds uint64 `cbor:"idle_seconds" json:"idle_seconds"`
}

// MetricsRecord is one entry of metrics.cbor.
type MetricsRecord struct {
	Timestamp time.Time        `cbor:"timestamp" json:"timestamp"`
	Metrics   metrics.Snapshot `cbor:"metrics" json:"metrics"`
	Sessions  []SessionSummary `cbor:"sessions" json:"sessions"`
}
