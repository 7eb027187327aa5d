// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package port maps display numbers to WebSocket forwarding ports.
//
// The mapping is fixed: base + display. [Resolver.CheckAvailable] binds
// and immediately releases the port to see whether something else on
// the host already holds it. Nothing is reserved between the probe and
// the display server's own bind, so a concurrent process can still win
// the port; the display server then fails to start and the session
// reports a spawn failure.
package port

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/infractura/ssh-desktop/lib/display"
)

// Port is a TCP port number.
type Port uint16

// Checker derives and probes forwarding ports. The supervisor uses it
// so tests can force a port to look occupied.
type Checker interface {
	Derive(d display.Number) Port
	CheckAvailable(ctx context.Context, p Port) bool
}

// Resolver is the network-backed Checker.
type Resolver struct {
	base         Port
	probeAddress string
	probeTimeout time.Duration
}

// NewResolver returns a resolver adding base to display numbers and
// probing on probeAddress. A non-positive probeTimeout means one second.
func NewResolver(base Port, probeAddress string, probeTimeout time.Duration) *Resolver {
	if probeTimeout <= 0 {
		probeTimeout = time.Second
	}
	return &Resolver{base: base, probeAddress: probeAddress, probeTimeout: probeTimeout}
}

// Derive returns base + d. Callers validate beforehand that the sum
// fits in a port.
func (r *Resolver) Derive(d display.Number) Port {
	return r.base + Port(d)
}

// CheckAvailable reports whether p can be bound on the probe address
// right now. Any bind error counts as unavailable.
func (r *Resolver) CheckAvailable(ctx context.Context, p Port) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", net.JoinHostPort(r.probeAddress, strconv.Itoa(int(p))))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// String renders the probe target for logs.
func (r *Resolver) String() string {
	return fmt.Sprintf("%s base %d", r.probeAddress, r.base)
}
