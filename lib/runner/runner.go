// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner describes what a session runs.
//
// A [Runner] is plain data: one of [Shell], [GraphicalForward] or [Echo].
// The interface is sealed so a type switch over the three variants is
// exhaustive; lib/session holds the only switch that turns a Runner into
// an operating system command.
package runner

import (
	"fmt"

	"github.com/infractura/ssh-desktop/lib/display"
)

// Kind names a runner variant on the control socket and in the journal.
type Kind string

const (
	KindShell     Kind = "shell"
	KindGraphical Kind = "graphical"
	KindEcho      Kind = "echo"
)

// ParseKind validates a kind received from outside the process.
func ParseKind(text string) (Kind, error) {
	switch kind := Kind(text); kind {
	case KindShell, KindGraphical, KindEcho:
		return kind, nil
	}
	return "", fmt.Errorf("unknown runner kind %q (want shell, graphical or echo)", text)
}

// NeedsDisplay reports whether sessions of this kind hold a display
// number and forwarding port.
func (k Kind) NeedsDisplay() bool {
	return k == KindGraphical
}

// Runner is the sealed sum of session behaviours.
type Runner interface {
	Kind() Kind
	runner()
}

// Shell runs Command under sh -c on its own pseudo-terminal. An empty
// Command starts the configured default shell interactively.
type Shell struct {
	Command string
}

// GraphicalForward runs a display server on Display with WindowManager
// as its only child, forwarded over WebSocket.
type GraphicalForward struct {
	Display       display.Number
	WindowManager string
}

// Echo runs nothing. It exists to exercise the session lifecycle
// without a subprocess.
type Echo struct{}

func (Shell) Kind() Kind            { return KindShell }
func (GraphicalForward) Kind() Kind { return KindGraphical }
func (Echo) Kind() Kind             { return KindEcho }

func (Shell) runner()            {}
func (GraphicalForward) runner() {}
func (Echo) runner()             {}
