// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"

	"github.com/infractura/ssh-desktop/lib/session"
)

// ErrorKind classifies a failed response.
type ErrorKind string

const (
	KindNoAvailableDisplay ErrorKind = "no_available_display"
	KindPortUnavailable    ErrorKind = "port_unavailable"
	KindSpawnFailed        ErrorKind = "spawn_failed"
	KindSessionLimit       ErrorKind = "session_limit"
	KindNotFound           ErrorKind = "not_found"
	KindInvalidRequest     ErrorKind = "invalid_request"
	KindSessionEnded       ErrorKind = "session_ended"
	KindSessionActive      ErrorKind = "session_active"
	KindInternal           ErrorKind = "internal"
)

var kindSentinels = []struct {
	kind     ErrorKind
	sentinel error
}{
	{KindNoAvailableDisplay, session.ErrNoAvailableDisplay},
	{KindPortUnavailable, session.ErrPortUnavailable},
	{KindSpawnFailed, session.ErrSpawnFailed},
	{KindSessionLimit, session.ErrSessionLimit},
	{KindNotFound, session.ErrSessionNotFound},
	{KindInvalidRequest, session.ErrInvalidRequest},
	{KindSessionEnded, session.ErrSessionEnded},
	{KindSessionActive, session.ErrSessionActive},
}

// KindOf classifies err by the session sentinel it wraps.
func KindOf(err error) ErrorKind {
	for _, entry := range kindSentinels {
		if errors.Is(err, entry.sentinel) {
			return entry.kind
		}
	}
	return KindInternal
}

// RemoteError is a failure reported by desktopd.
type RemoteError struct {
	Kind    ErrorKind
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap returns the session sentinel matching Kind, if any.
func (e *RemoteError) Unwrap() error {
	for _, entry := range kindSentinels {
		if entry.kind == e.Kind {
			return entry.sentinel
		}
	}
	return nil
}

// Err returns nil for an OK response and a *RemoteError otherwise.
func (r *Response) Err() error {
	if r.OK {
		return nil
	}
	kind := r.ErrorKind
	if kind == "" {
		kind = KindInternal
	}
	return &RemoteError{Kind: kind, Message: r.Error}
}
