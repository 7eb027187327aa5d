// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
)

// Session is one supervised unit of work. Its process handle belongs to
// the goroutine running supervise; everything else is read through
// Status.
type Session struct {
	id         string
	user       string
	kind       runner.Kind
	startedAt  time.Time
	supervisor *Supervisor
	logger     *slog.Logger

	// ctx is cancelled when teardown completes, aborting in-flight
	// readiness probes.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	runner       runner.Runner
	display      *display.Number
	port         *port.Port
	state        State
	outcome      Outcome
	lastActivity time.Time
	endedAt      time.Time
	errorText    string
	pid          int
	terminal     *os.File

	stopOnce      sync.Once
	stopRequested chan struct{}
	teardownOnce  sync.Once
	done          chan struct{}
}

// Status is a point-in-time copy of a session for queries.
type Status struct {
	ID             string          `json:"id" cbor:"id"`
	User           string          `json:"user" cbor:"user"`
	Kind           runner.Kind     `json:"kind" cbor:"kind"`
	Display        *display.Number `json:"display,omitempty" cbor:"display,omitempty"`
	Port           *port.Port      `json:"port,omitempty" cbor:"port,omitempty"`
	State          State           `json:"state" cbor:"state"`
	Outcome        Outcome         `json:"outcome,omitempty" cbor:"outcome,omitempty"`
	StartedAt      time.Time       `json:"started_at" cbor:"started_at"`
	LastActivityAt time.Time       `json:"last_activity_at" cbor:"last_activity_at"`
	EndedAt        *time.Time      `json:"ended_at,omitempty" cbor:"ended_at,omitempty"`
	IdleSeconds    uint64          `json:"idle_seconds" cbor:"idle_seconds"`
	PID            int             `json:"pid,omitempty" cbor:"pid,omitempty"`
	Error          string          `json:"error,omitempty" cbor:"error,omitempty"`
}

func newSession(supervisor *Supervisor, id string, request Request, now time.Time) *Session {
	var r runner.Runner
	switch request.Kind {
	case runner.KindShell:
		r = runner.Shell{Command: request.ShellCommand}
	case runner.KindGraphical:
		windowManager := request.WindowManager
		if windowManager == "" {
			windowManager = supervisor.config.WindowManager
		}
		r = runner.GraphicalForward{WindowManager: windowManager}
	default:
		r = runner.Echo{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:            id,
		user:          request.User,
		kind:          request.Kind,
		startedAt:     now,
		supervisor:    supervisor,
		logger:        supervisor.logger.With("session_id", id, "user", request.User, "kind", string(request.Kind)),
		ctx:           ctx,
		cancel:        cancel,
		runner:        r,
		state:         StateStarting,
		lastActivity:  now,
		stopRequested: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// User returns the owning user.
func (s *Session) User() string { return s.user }

// Kind returns the runner kind.
func (s *Session) Kind() runner.Kind { return s.kind }

// Done is closed once teardown has fully completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Terminal returns the pseudo-terminal master of a shell session, or
// nil. Its output is drained by the spawner, so it serves input and
// window-size changes. It is closed when the shell exits.
func (s *Session) Terminal() *os.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// Status copies the session's current state.
func (s *Session) Status() Status {
	now := s.supervisor.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		ID:             s.id,
		User:           s.user,
		Kind:           s.kind,
		State:          s.state,
		Outcome:        s.outcome,
		StartedAt:      s.startedAt,
		LastActivityAt: s.lastActivity,
		PID:            s.pid,
		Error:          s.errorText,
	}
	if s.display != nil {
		number := *s.display
		status.Display = &number
	}
	if s.port != nil {
		forwardPort := *s.port
		status.Port = &forwardPort
	}
	if s.state == StateTerminated {
		ended := s.endedAt
		status.EndedAt = &ended
	} else if idle := now.Sub(s.lastActivity); idle > 0 {
		status.IdleSeconds = uint64(idle / time.Second)
	}
	return status
}

// assignDisplay binds the allocated display and port before spawn.
func (s *Session) assignDisplay(number display.Number, forwardPort port.Port) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.display = &number
	s.port = &forwardPort
	if graphical, ok := s.runner.(runner.GraphicalForward); ok {
		graphical.Display = number
		s.runner = graphical
	}
	s.logger = s.logger.With("display", uint16(number), "port", uint16(forwardPort))
}

func (s *Session) spec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	spec := Spec{
		SessionID:  s.id,
		Runner:     s.runner,
		Shell:      s.supervisor.config.Shell,
		XpraBinary: s.supervisor.config.XpraBinary,

		OutputDelay: s.supervisor.config.TerminationGrace,
	}
	if s.port != nil {
		spec.Port = *s.port
	}
	return spec
}

func (s *Session) attach(process Process) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid = process.Pid()
	if terminal, ok := process.(Terminal); ok {
		s.terminal = terminal.Terminal()
	}
}

func (s *Session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// requestStop asks the supervising goroutine to tear down with
// OutcomeKilled. Safe to call any number of times.
func (s *Session) requestStop() {
	s.stopOnce.Do(func() { close(s.stopRequested) })
}

// touch records activity, returning an idle session to Running.
func (s *Session) touch() error {
	now := s.supervisor.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateTerminating, StateTerminated:
		return ErrSessionEnded
	case StateIdle:
		s.state = StateRunning
		s.logger.Info("session active again")
	}
	s.lastActivity = now
	return nil
}

// checkIdle applies the idle deadlines. It returns true when the hard
// timeout has passed and the session must end.
func (s *Session) checkIdle() bool {
	config := s.supervisor.config
	now := s.supervisor.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	idleFor := now.Sub(s.lastActivity)
	if idleFor >= config.IdleHardTimeout {
		return true
	}
	if idleFor >= config.IdleTimeout && s.state == StateRunning {
		s.state = StateIdle
		s.logger.Info("session idle", "idle_for", idleFor.String())
	}
	return false
}

// event builds a journal entry describing this session.
func (s *Session) event(eventType history.EventType, errorText string) history.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	event := history.Event{
		Timestamp: s.supervisor.clock.Now(),
		Type:      eventType,
		SessionID: s.id,
		User:      s.user,
		Kind:      string(s.kind),
		Error:     errorText,
	}
	if s.display != nil {
		event.Display = uint16(*s.display)
	}
	if s.port != nil {
		event.Port = uint16(*s.port)
	}
	return event
}
