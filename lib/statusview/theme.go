// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusview

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/infractura/ssh-desktop/lib/session"
)

// ColorEnabled reports whether output to file should be colored: it
// must be a terminal and the user must not have asked for plain output
// with --no-color or NO_COLOR.
func ColorEnabled(file *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// styles holds the lipgloss styles for one render. They are bound to a
// renderer whose profile is fixed up front: lipgloss would otherwise
// re-detect colors from the writer.
type styles struct {
	plain  lipgloss.Style
	title  lipgloss.Style
	header lipgloss.Style
	label  lipgloss.Style
	faint  lipgloss.Style
	box    lipgloss.Style

	running     lipgloss.Style
	idle        lipgloss.Style
	starting    lipgloss.Style
	terminating lipgloss.Style
	terminated  lipgloss.Style
	failed      lipgloss.Style
}

func newStyles(writer io.Writer, color bool) styles {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(writer, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return styles{
		plain:  renderer.NewStyle(),
		title:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		header: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		label:  renderer.NewStyle().Foreground(lipgloss.Color("245")),
		faint:  renderer.NewStyle().Foreground(lipgloss.Color("240")),
		box: renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),

		running:     renderer.NewStyle().Foreground(lipgloss.Color("78")),
		idle:        renderer.NewStyle().Foreground(lipgloss.Color("179")),
		starting:    renderer.NewStyle().Foreground(lipgloss.Color("75")),
		terminating: renderer.NewStyle().Foreground(lipgloss.Color("209")),
		terminated:  renderer.NewStyle().Foreground(lipgloss.Color("240")),
		failed:      renderer.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func (s styles) state(status session.Status) lipgloss.Style {
	switch status.State {
	case session.StateRunning:
		return s.running
	case session.StateIdle:
		return s.idle
	case session.StateStarting:
		return s.starting
	case session.StateTerminating:
		return s.terminating
	case session.StateTerminated:
		if status.Outcome == session.OutcomeFailed {
			return s.failed
		}
		return s.terminated
	}
	return s.faint
}
