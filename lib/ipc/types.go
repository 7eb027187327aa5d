// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"time"

	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/session"
)

// Actions understood by desktopd.
const (
	ActionStartSession  = "start-session"
	ActionStopSession   = "stop-session"
	ActionTouchSession  = "touch-session"
	ActionSessionStatus = "session-status"
	ActionListSessions  = "list-sessions"
	ActionWaitSession   = "wait-session"
	ActionMetrics       = "metrics"
	ActionStatus        = "status"
	ActionAnalyze       = "analyze"
)

// Request is one client request.
type Request struct {
	Action string `cbor:"action"`

	// SessionID names the session for stop, touch, status and wait.
	SessionID string `cbor:"session_id,omitempty"`

	// Kind, User, WindowManager and ShellCommand describe a
	// start-session request.
	Kind          string `cbor:"kind,omitempty"`
	User          string `cbor:"user,omitempty"`
	WindowManager string `cbor:"window_manager,omitempty"`
	ShellCommand  string `cbor:"shell_command,omitempty"`

	// Since and Until bound an analyze request.
	Since time.Time `cbor:"since,omitempty"`
	Until time.Time `cbor:"until,omitempty"`
}

// Response is desktopd's answer to one Request.
type Response struct {
	OK        bool      `cbor:"ok"`
	Error     string    `cbor:"error,omitempty"`
	ErrorKind ErrorKind `cbor:"error_kind,omitempty"`

	// Session is set by start, status and wait.
	Session *session.Status `cbor:"session,omitempty"`

	// Sessions is set by list-sessions and status.
	Sessions []session.Status `cbor:"sessions,omitempty"`

	// Metrics is set by metrics and status.
	Metrics *metrics.Snapshot `cbor:"metrics,omitempty"`

	// Daemon is set by status.
	Daemon *DaemonInfo `cbor:"daemon,omitempty"`

	// Analysis is set by analyze.
	Analysis *history.Analysis `cbor:"analysis,omitempty"`
}

// DaemonInfo describes the running daemon and its configuration.
type DaemonInfo struct {
	Version            string        `cbor:"version" json:"version"`
	StartedAt          time.Time     `cbor:"started_at" json:"started_at"`
	DisplayMin         uint16        `cbor:"display_min" json:"display_min"`
	DisplayMax         uint16        `cbor:"display_max" json:"display_max"`
	DisplaysHeld       int           `cbor:"displays_held" json:"displays_held"`
	BasePort           uint16        `cbor:"base_port" json:"base_port"`
	IdleTimeout        time.Duration `cbor:"idle_timeout_ns" json:"idle_timeout_ns"`
	IdleHardTimeout    time.Duration `cbor:"idle_hard_timeout_ns" json:"idle_hard_timeout_ns"`
	MaxSessionsPerUser int           `cbor:"max_sessions_per_user" json:"max_sessions_per_user"`
	WindowManager      string        `cbor:"window_manager" json:"window_manager"`
	HistoryDir         string        `cbor:"history_dir,omitempty" json:"history_dir,omitempty"`
}

// Success returns an OK response to fill in.
func Success() Response {
	return Response{OK: true}
}

// Failure builds the response for err.
func Failure(err error) Response {
	return Response{OK: false, Error: err.Error(), ErrorKind: KindOf(err)}
}
