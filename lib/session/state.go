// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "github.com/infractura/ssh-desktop/lib/history"

// State is a session's position in its lifecycle.
//
//	Starting -> Running <-> Idle
//	Starting | Running | Idle -> Terminating -> Terminated
type State string

const (
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StateIdle        State = "idle"
	StateTerminating State = "terminating"
	StateTerminated  State = "terminated"
)

// Live reports whether the session still holds, or may still acquire,
// resources.
func (s State) Live() bool {
	return s != StateTerminated
}

// Outcome records why a session ended. It is empty until the session
// begins terminating.
type Outcome string

const (
	OutcomeNormal      Outcome = "normal"
	OutcomeFailed      Outcome = "failed"
	OutcomeKilled      Outcome = "killed"
	OutcomeIdleTimeout Outcome = "idle_timeout"
)

// eventType maps an outcome to the journal event that closes a session.
func (o Outcome) eventType() history.EventType {
	switch o {
	case OutcomeFailed:
		return history.EventFailed
	case OutcomeKilled:
		return history.EventKilled
	case OutcomeIdleTimeout:
		return history.EventIdleTimeout
	}
	return history.EventTerminated
}
