// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
)

// Config holds the supervisor's timing and command settings.
type Config struct {
	// IdleTimeout moves a Running session to Idle. Zero disables idle
	// handling.
	IdleTimeout time.Duration

	// IdleHardTimeout ends a session with OutcomeIdleTimeout. Must
	// exceed IdleTimeout.
	IdleHardTimeout time.Duration

	// IdleCheckInterval is the period of each session's idle check.
	IdleCheckInterval time.Duration

	// TerminationGrace separates SIGTERM from SIGKILL, and bounds the
	// wait after SIGKILL.
	TerminationGrace time.Duration

	// StartupTimeout bounds readiness of graphical sessions.
	StartupTimeout time.Duration

	// ReadinessPoll is the interval between readiness probes.
	ReadinessPoll time.Duration

	// RetainTerminated keeps finished sessions queryable for this long.
	// Zero keeps them until Forget.
	RetainTerminated time.Duration

	// MaxSessionsPerUser caps live sessions per user. Zero means no cap.
	MaxSessionsPerUser int

	WindowManager string
	Shell         string
	XpraBinary    string
}

func (c Config) validate() error {
	var errs []error
	if c.IdleTimeout < 0 {
		errs = append(errs, errors.New("idle timeout must not be negative"))
	}
	if c.IdleTimeout > 0 {
		if c.IdleHardTimeout <= c.IdleTimeout {
			errs = append(errs, fmt.Errorf("idle hard timeout %v must exceed idle timeout %v", c.IdleHardTimeout, c.IdleTimeout))
		}
		if c.IdleCheckInterval <= 0 {
			errs = append(errs, errors.New("idle check interval must be positive"))
		}
	}
	if c.TerminationGrace <= 0 {
		errs = append(errs, errors.New("termination grace must be positive"))
	}
	if c.StartupTimeout <= 0 {
		errs = append(errs, errors.New("startup timeout must be positive"))
	}
	if c.ReadinessPoll <= 0 {
		errs = append(errs, errors.New("readiness poll must be positive"))
	}
	if c.MaxSessionsPerUser < 0 {
		errs = append(errs, errors.New("max sessions per user must not be negative"))
	}
	return errors.Join(errs...)
}

// EventRecorder receives lifecycle events. *history.Journal implements
// it.
type EventRecorder interface {
	Record(event history.Event) error
}

// Options configures a Supervisor. Pool, Ports and Metrics are required.
type Options struct {
	Config  Config
	Pool    *display.Pool
	Ports   port.Checker
	Metrics *metrics.Registry

	// Journal is optional.
	Journal EventRecorder

	// Clock defaults to the wall clock.
	Clock clock.Clock

	Logger *slog.Logger

	// Spawner defaults to ExecSpawner.
	Spawner Spawner

	// Prober defaults to WebSocketProber.
	Prober Prober
}

// Request asks for a new session.
type Request struct {
	Kind          runner.Kind
	User          string
	WindowManager string
	ShellCommand  string
}

func (r Request) validate() error {
	if strings.TrimSpace(r.User) == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if _, err := runner.ParseKind(string(r.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Kind != runner.KindShell && r.ShellCommand != "" {
		return fmt.Errorf("%w: shell command given for a %s session", ErrInvalidRequest, r.Kind)
	}
	if r.Kind != runner.KindGraphical && r.WindowManager != "" {
		return fmt.Errorf("%w: window manager given for a %s session", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// Supervisor starts sessions and owns the registry of live and recently
// terminated ones.
type Supervisor struct {
	config  Config
	pool    *display.Pool
	ports   port.Checker
	metrics *metrics.Registry
	journal EventRecorder
	clock   clock.Clock
	logger  *slog.Logger
	spawner Spawner
	prober  Prober

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSupervisor validates options and returns an empty supervisor.
func NewSupervisor(options Options) (*Supervisor, error) {
	if options.Pool == nil || options.Ports == nil || options.Metrics == nil {
		return nil, errors.New("session supervisor needs a display pool, port checker and metrics registry")
	}
	if err := options.Config.validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Spawner == nil {
		options.Spawner = ExecSpawner{}
	}
	if options.Prober == nil {
		options.Prober = WebSocketProber{}
	}
	return &Supervisor{
		config:   options.Config,
		pool:     options.Pool,
		ports:    options.Ports,
		metrics:  options.Metrics,
		journal:  options.Journal,
		clock:    options.Clock,
		logger:   options.Logger,
		spawner:  options.Spawner,
		prober:   options.Prober,
		sessions: make(map[string]*Session),
	}, nil
}

// Start acquires resources, spawns, and waits until the session is
// Running. Every failure unwinds what was acquired. Errors are
// ErrInvalidRequest, ErrSessionLimit, ErrNoAvailableDisplay,
// ErrPortUnavailable, or a *SpawnError wrapping ErrSpawnFailed.
//
// Display and port failures leave the metrics untouched. Spawn and
// readiness failures are counted as a start followed by a failure.
func (s *Supervisor) Start(ctx context.Context, request Request) (*Session, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	session, err := s.reserve(request)
	if err != nil {
		return nil, err
	}

	if request.Kind.NeedsDisplay() {
		number, err := s.pool.Allocate()
		if err != nil {
			err = fmt.Errorf("starting %s session for %s: %w", request.Kind, request.User, err)
			session.discard(err.Error())
			s.unregister(session.id)
			return nil, err
		}
		forwardPort := s.ports.Derive(number)
		if !s.ports.CheckAvailable(ctx, forwardPort) {
			s.pool.Release(number)
			err = fmt.Errorf("display %d: port %d: %w", number, forwardPort, ErrPortUnavailable)
			session.discard(err.Error())
			s.unregister(session.id)
			return nil, err
		}
		session.assignDisplay(number, forwardPort)
	}

	s.metrics.RecordStart()
	s.record(session.event(history.EventCreated, ""))
	session.logger.Info("starting session")

	var process Process
	if request.Kind != runner.KindEcho {
		process, err = s.spawner.Spawn(session.spec())
		if err != nil {
			spawnErr := &SpawnError{SessionID: session.id, Reason: "spawning process", Err: err}
			session.abandon(spawnErr)
			s.unregister(session.id)
			return nil, spawnErr
		}
		session.attach(process)
	}

	ready := make(chan error, 1)
	go session.supervise(process, ready)

	select {
	case err = <-ready:
	case <-ctx.Done():
		session.requestStop()
		if <-ready == nil {
			<-session.done
		}
		err = &SpawnError{SessionID: session.id, Reason: "start cancelled", Err: ctx.Err()}
	}
	if err != nil {
		s.unregister(session.id)
		return nil, err
	}
	session.logger.Info("session running", "pid", session.Status().PID)
	return session, nil
}

// reserve registers a Starting session, enforcing the per-user cap.
func (s *Supervisor) reserve(request Request) (*Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)

	if limit := s.config.MaxSessionsPerUser; limit > 0 {
		live := 0
		for _, existing := range s.sessions {
			if existing.user == request.User && existing.currentState().Live() {
				live++
			}
		}
		if live >= limit {
			return nil, fmt.Errorf("user %s already holds %d sessions: %w", request.User, live, ErrSessionLimit)
		}
	}

	session := newSession(s, uuid.NewString(), request, now)
	s.sessions[session.id] = session
	return session, nil
}

func (s *Supervisor) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Supervisor) lookup(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// pruneLocked drops sessions that ended more than RetainTerminated ago.
func (s *Supervisor) pruneLocked(now time.Time) {
	if s.config.RetainTerminated <= 0 {
		return
	}
	for id, session := range s.sessions {
		status := session.Status()
		if status.EndedAt != nil && now.Sub(*status.EndedAt) >= s.config.RetainTerminated {
			delete(s.sessions, id)
		}
	}
}

func (s *Supervisor) record(event history.Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(event); err != nil {
		s.logger.Warn("journaling session event failed",
			"session_id", event.SessionID, "event", string(event.Type), "error", err)
	}
}

// Stop requests a Killed teardown and waits for it to finish or for ctx
// to expire. Stopping a terminated session succeeds without effect.
func (s *Supervisor) Stop(ctx context.Context, id string) error {
	session, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	session.requestStop()
	select {
	case <-session.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session %s to stop: %w", id, ctx.Err())
	}
}

// Touch records activity on a session.
func (s *Supervisor) Touch(id string) error {
	session, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	if err := session.touch(); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

// Get returns the status of one session.
func (s *Supervisor) Get(id string) (Status, bool) {
	session, ok := s.lookup(id)
	if !ok {
		return Status{}, false
	}
	return session.Status(), true
}

// Session returns the live handle for id.
func (s *Supervisor) Session(id string) (*Session, bool) {
	return s.lookup(id)
}

// List returns every registered session, oldest first.
func (s *Supervisor) List() []Status {
	now := s.clock.Now()

	s.mu.Lock()
	s.pruneLocked(now)
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	statuses := make([]Status, 0, len(sessions))
	for _, session := range sessions {
		statuses = append(statuses, session.Status())
	}
	sort.Slice(statuses, func(a, b int) bool {
		if statuses[a].StartedAt.Equal(statuses[b].StartedAt) {
			return statuses[a].ID < statuses[b].ID
		}
		return statuses[a].StartedAt.Before(statuses[b].StartedAt)
	})
	return statuses
}

// Summaries describes the live sessions for a metrics record.
func (s *Supervisor) Summaries() []history.SessionSummary {
	var summaries []history.SessionSummary
	for _, status := range s.List() {
		if !status.State.Live() {
			continue
		}
		summary := history.SessionSummary{
			SessionID:   status.ID,
			User:        status.User,
			Kind:        string(status.Kind),
			State:       string(status.State),
			IdleSeconds: status.IdleSeconds,
		}
		if status.Display != nil {
			summary.Display = uint16(*status.Display)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// Wait blocks until the session terminates or ctx expires, and returns
// its status.
func (s *Supervisor) Wait(ctx context.Context, id string) (Status, error) {
	session, ok := s.lookup(id)
	if !ok {
		return Status{}, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	select {
	case <-session.done:
		return session.Status(), nil
	case <-ctx.Done():
		return session.Status(), ctx.Err()
	}
}

// Forget removes a terminated session from the registry.
func (s *Supervisor) Forget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	if session.currentState().Live() {
		return fmt.Errorf("%s: %w", id, ErrSessionActive)
	}
	delete(s.sessions, id)
	return nil
}

// Shutdown stops every live session and waits until all have torn down
// or ctx expires.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.requestStop()
	}
	for _, session := range sessions {
		select {
		case <-session.done:
		case <-ctx.Done():
			return fmt.Errorf("shutting down sessions: %w", ctx.Err())
		}
	}
	return nil
}

// Metrics returns the registry the supervisor records into.
func (s *Supervisor) Metrics() *metrics.Registry { return s.metrics }

// Pool returns the display pool.
func (s *Supervisor) Pool() *display.Pool { return s.pool }
