// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusview

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// FetchFunc returns a fresh report.
type FetchFunc func(ctx context.Context) (Report, error)

// KeyMap defines the key bindings for the watch view.
type KeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// fetchTimeout bounds one poll so a wedged daemon cannot freeze the
// view.
const fetchTimeout = 5 * time.Second

type reportMsg struct {
	report Report
	err    error
}

type tickMsg struct {
	generation int
}

// WatchModel is a bubbletea model that shows the status view and
// refreshes it every interval.
type WatchModel struct {
	fetch    FetchFunc
	interval time.Duration
	keys     KeyMap
	color    bool

	width      int
	report     Report
	err        error
	loaded     bool
	fetching   bool
	generation int
}

// NewWatchModel creates a watch model. Color selects the render
// profile, as in [Options].
func NewWatchModel(fetch FetchFunc, interval time.Duration, color bool) WatchModel {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return WatchModel{fetch: fetch, interval: interval, keys: DefaultKeyMap, color: color, fetching: true}
}

// Init starts the first fetch. The model starts out fetching.
func (m WatchModel) Init() tea.Cmd {
	return m.fetchCmd()
}

func (m WatchModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		report, err := fetch(ctx)
		return reportMsg{report: report, err: err}
	}
}

func (m WatchModel) tickCmd() tea.Cmd {
	generation := m.generation
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{generation: generation}
	})
}

// Update handles key presses, fetch results and refresh ticks.
func (m WatchModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(message, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(message, m.keys.Refresh):
			if m.fetching {
				return m, nil
			}
			// A manual refresh invalidates the pending tick so polls
			// do not double up.
			m.generation++
			m.fetching = true
			return m, m.fetchCmd()
		}

	case tea.WindowSizeMsg:
		m.width = message.Width

	case reportMsg:
		m.fetching = false
		m.err = message.err
		if message.err == nil {
			m.report = message.report
			m.loaded = true
		}
		return m, m.tickCmd()

	case tickMsg:
		if message.generation != m.generation || m.fetching {
			return m, nil
		}
		m.fetching = true
		return m, m.fetchCmd()
	}
	return m, nil
}

// View renders the latest report, or the current error.
func (m WatchModel) View() string {
	var builder strings.Builder
	s := newStyles(io.Discard, m.color)

	if m.loaded {
		builder.WriteString(statusString(io.Discard, m.report, Options{Color: m.color, Width: m.width}))
	} else if m.err == nil {
		builder.WriteString(s.faint.Render("connecting..."))
		builder.WriteString("\n")
	}
	if m.err != nil {
		builder.WriteString("\n")
		builder.WriteString(s.failed.Render("error: " + m.err.Error()))
		builder.WriteString("\n")
	}
	builder.WriteString("\n")
	builder.WriteString(s.faint.Render(m.keys.Refresh.Help().Key + " " + m.keys.Refresh.Help().Desc +
		"  " + m.keys.Quit.Help().Key + " " + m.keys.Quit.Help().Desc))
	return builder.String()
}
