// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/infractura/ssh-desktop/lib/codec"
)

// Handler answers one request.
//
// The context passed to Handle is cancelled when the server shuts down
// and, for start-session and wait-session, also when the client hangs
// up.
type Handler interface {
	Handle(ctx context.Context, request *Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, request *Request) Response

func (f HandlerFunc) Handle(ctx context.Context, request *Request) Response {
	return f(ctx, request)
}

// Serve accepts connections on listener until ctx is cancelled and
// handles each one on its own goroutine. It closes the listener when
// ctx is done.
func Serve(ctx context.Context, listener net.Listener, handler Handler, logger *slog.Logger) {
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			// Check if the context was cancelled (shutdown).
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Error("accept error", "error", err)
			continue
		}
		go handleConnection(ctx, conn, handler, logger)
	}
}

// handleConnection processes a single request/response cycle.
func handleConnection(ctx context.Context, conn net.Conn, handler Handler, logger *slog.Logger) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(DefaultTimeout))

	decoder := codec.NewDecoder(conn)
	encoder := codec.NewEncoder(conn)

	var request Request
	if err := decoder.Decode(&request); err != nil {
		logger.Error("decoding IPC request", "error", err)
		if err := encoder.Encode(Response{OK: false, Error: "invalid request", ErrorKind: KindInvalidRequest}); err != nil {
			logger.Error("encoding IPC error response", "error", err)
		}
		return
	}

	logger.Info("IPC request", "action", request.Action, "session_id", request.SessionID)

	long := longRunning(request.Action)
	if long {
		// wait-session blocks until the session ends, potentially for
		// hours; start-session until the session is ready. Both are
		// abandoned if the client hangs up.
		conn.SetDeadline(time.Time{})
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go watchHangup(conn, cancel)
	}

	response := handler.Handle(ctx, &request)

	if long {
		conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	}
	if err := encoder.Encode(response); err != nil {
		if long && isHangup(err) {
			logger.Info("client left before the response", "action", request.Action, "session_id", request.SessionID)
			return
		}
		logger.Error("encoding IPC response", "action", request.Action, "error", err)
	}
}

// watchHangup calls cancel once the peer closes its side. Clients send
// nothing after the request, so any read result means the peer went
// away or the connection was closed locally.
func watchHangup(conn net.Conn, cancel context.CancelFunc) {
	var buffer [1]byte
	conn.Read(buffer[:])
	cancel()
}

// longRunning reports whether action may outlive DefaultTimeout.
func longRunning(action string) bool {
	return action == ActionWaitSession || action == ActionStartSession
}

// isHangup reports whether err is the peer closing its end: EOF, a
// closed connection, a broken pipe or a reset.
func isHangup(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
