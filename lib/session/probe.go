// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/infractura/ssh-desktop/lib/port"
)

// Prober decides whether a graphical session's server accepts clients.
type Prober interface {
	Ready(ctx context.Context, p port.Port) bool
}

// WebSocketProber attempts a WebSocket handshake against the forwarding
// port. Any HTTP answer counts as ready, including a refused upgrade:
// the server is listening and parsing requests, which is all the
// forwarder needs.
type WebSocketProber struct {
	// Host defaults to 127.0.0.1.
	Host string

	// Timeout bounds one handshake; it defaults to one second.
	Timeout time.Duration
}

// Ready implements Prober.
func (p WebSocketProber) Ready(ctx context.Context, target port.Port) bool {
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := "ws://" + net.JoinHostPort(host, strconv.Itoa(int(target))) + "/"
	connection, response, err := dialer.DialContext(ctx, url, nil)
	if err == nil {
		connection.Close()
		return true
	}
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	return errors.Is(err, websocket.ErrBadHandshake) && response != nil
}
