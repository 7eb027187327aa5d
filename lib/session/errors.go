// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"

	"github.com/infractura/ssh-desktop/lib/display"
)

var (
	// ErrNoAvailableDisplay aliases the pool's error so callers need
	// only this package.
	ErrNoAvailableDisplay = display.ErrNoAvailableDisplay

	// ErrPortUnavailable means the forwarding port for the allocated
	// display is held by something else.
	ErrPortUnavailable = errors.New("forwarding port unavailable")

	// ErrSpawnFailed means the subprocess could not be started or
	// never became ready. Returned wrapped in a *SpawnError.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrSessionLimit means the user already holds the maximum number
	// of live sessions.
	ErrSessionLimit = errors.New("per-user session limit reached")

	// ErrInvalidRequest means the start request is malformed.
	ErrInvalidRequest = errors.New("invalid session request")

	// ErrSessionNotFound means no session with that id is registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionEnded means the session has already begun terminating.
	ErrSessionEnded = errors.New("session has ended")

	// ErrSessionActive means the operation needs a terminated session.
	ErrSessionActive = errors.New("session is still active")
)

// SpawnError reports why a session failed between spawn and Running.
type SpawnError struct {
	SessionID string
	Reason    string
	Err       error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
}

// Unwrap exposes both ErrSpawnFailed and the underlying cause.
func (e *SpawnError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSpawnFailed, e.Err}
	}
	return []error{ErrSpawnFailed}
}
