// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/infractura/ssh-desktop/lib/codec"
)

// DefaultTimeout bounds one exchange when the caller's context has no
// deadline. It matches the server's per-connection deadline.
const DefaultTimeout = 30 * time.Second

// Call sends request to the desktopd socket at socketPath and returns
// its response. A transport failure is returned as the error; a failed
// response is returned as-is with OK false, so callers that want a
// single error should use [Response.Err].
//
// start-session and wait-session requests are not bounded by
// DefaultTimeout. Give them a context with the deadline you want, or
// none. Cancelling ctx abandons the request on the server too.
func Call(ctx context.Context, socketPath string, request Request) (*Response, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to desktopd at %s: %w", socketPath, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok && !longRunning(request.Action) {
		deadline = time.Now().Add(DefaultTimeout)
	}
	conn.SetDeadline(deadline)

	// Unblock the decode below when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("sending %s request: %w", request.Action, err)
	}

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("reading %s response: %w", request.Action, ctx.Err())
		}
		return nil, fmt.Errorf("reading %s response: %w", request.Action, err)
	}
	return &response, nil
}

// Do is Call followed by [Response.Err]: it returns the response only
// when it is OK.
func Do(ctx context.Context, socketPath string, request Request) (*Response, error) {
	response, err := Call(ctx, socketPath, request)
	if err != nil {
		return nil, err
	}
	if err := response.Err(); err != nil {
		return nil, err
	}
	return response, nil
}
