// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
	"github.com/infractura/ssh-desktop/lib/testutil"
)

var (
	errTerminated = errors.New("signal: terminated")
	errKilled     = errors.New("signal: killed")
)

// fakeProcess exits when told to, on SIGTERM unless ignoreTerm is set,
// and always on SIGKILL.
type fakeProcess struct {
	pid        int
	ignoreTerm bool
	result     chan error
	exitOnce   sync.Once

	mu      sync.Mutex
	signals []syscall.Signal
}

func newFakeProcess(pid int, ignoreTerm bool) *fakeProcess {
	return &fakeProcess{pid: pid, ignoreTerm: ignoreTerm, result: make(chan error, 1)}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Signal(sig syscall.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	switch {
	case sig == syscall.SIGKILL:
		p.exit(errKilled)
	case sig == syscall.SIGTERM && !p.ignoreTerm:
		p.exit(errTerminated)
	}
	return nil
}

func (p *fakeProcess) Kill() error { return p.Signal(syscall.SIGKILL) }

func (p *fakeProcess) Wait() error { return <-p.result }

// exit makes Wait return err. Later calls have no effect.
func (p *fakeProcess) exit(err error) {
	p.exitOnce.Do(func() { p.result <- err })
}

func (p *fakeProcess) received() []syscall.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]syscall.Signal(nil), p.signals...)
}

type fakeSpawner struct {
	gate gate

	mu         sync.Mutex
	fail       error
	ignoreTerm bool
	nextPID    int
	specs      []Spec
	processes  []*fakeProcess
	spawned    chan *fakeProcess
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{nextPID: 1000, spawned: make(chan *fakeProcess, 64)}
}

func (s *fakeSpawner) Spawn(spec Spec) (Process, error) {
	s.gate.pass()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	if s.fail != nil {
		return nil, s.fail
	}
	s.nextPID++
	process := newFakeProcess(s.nextPID, s.ignoreTerm)
	s.processes = append(s.processes, process)
	s.spawned <- process
	return process, nil
}

func (s *fakeSpawner) setFail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *fakeSpawner) setIgnoreTerm(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreTerm = ignore
}

func (s *fakeSpawner) lastSpec() Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.specs[len(s.specs)-1]
}

// fakePorts derives like the real resolver but reports ports in
// occupied as unavailable.
type fakePorts struct {
	gate gate

	base     port.Port
	mu       sync.Mutex
	occupied map[port.Port]bool
}

func (p *fakePorts) Derive(d display.Number) port.Port { return p.base + port.Port(d) }

func (p *fakePorts) CheckAvailable(_ context.Context, target port.Port) bool {
	p.gate.pass()
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.occupied[target]
}

func (p *fakePorts) occupy(target port.Port) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.occupied[target] = true
}

// gate holds callers of pass until opened. A zero gate never blocks.
type gate struct {
	mu      sync.Mutex
	entered chan struct{}
	release chan struct{}
}

// hold makes the next pass block; it returns a channel closed when a
// caller arrives, and a function that lets it through.
func (g *gate) hold() (entered <-chan struct{}, open func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entered = make(chan struct{})
	g.release = make(chan struct{})
	release := g.release
	return g.entered, sync.OnceFunc(func() { close(release) })
}

func (g *gate) pass() {
	g.mu.Lock()
	entered, release := g.entered, g.release
	g.entered, g.release = nil, nil
	g.mu.Unlock()
	if release == nil {
		return
	}
	close(entered)
	<-release
}

type fakeProber struct {
	ready atomic.Bool
	calls atomic.Int64
}

func (p *fakeProber) Ready(context.Context, port.Port) bool {
	p.calls.Add(1)
	return p.ready.Load()
}

type recordingJournal struct {
	mu     sync.Mutex
	events []history.Event
}

func (j *recordingJournal) Record(event history.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return nil
}

func (j *recordingJournal) types(sessionID string) []history.EventType {
	j.mu.Lock()
	defer j.mu.Unlock()
	var types []history.EventType
	for _, event := range j.events {
		if event.SessionID == sessionID {
			types = append(types, event.Type)
		}
	}
	return types
}

type harness struct {
	clock      *clock.FakeClock
	pool       *display.Pool
	metrics    *metrics.Registry
	spawner    *fakeSpawner
	ports      *fakePorts
	prober     *fakeProber
	journal    *recordingJournal
	supervisor *Supervisor
}

func testConfig() Config {
	return Config{
		TerminationGrace: 5 * time.Second,
		StartupTimeout:   30 * time.Second,
		ReadinessPoll:    time.Second,
		WindowManager:    "openbox",
		Shell:            "/bin/sh",
		XpraBinary:       "xpra",
	}
}

func newHarness(t *testing.T, min, max display.Number, mutate func(*Config)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := clock.Fake(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	pool, err := display.NewPool(min, max, logger)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	config := testConfig()
	if mutate != nil {
		mutate(&config)
	}

	h := &harness{
		clock:   fake,
		pool:    pool,
		metrics: metrics.New(fake),
		spawner: newFakeSpawner(),
		ports:   &fakePorts{base: 14500, occupied: make(map[port.Port]bool)},
		prober:  &fakeProber{},
		journal: &recordingJournal{},
	}
	h.prober.ready.Store(true)

	h.supervisor, err = NewSupervisor(Options{
		Config:  config,
		Pool:    pool,
		Ports:   h.ports,
		Metrics: h.metrics,
		Journal: h.journal,
		Clock:   fake,
		Logger:  logger,
		Spawner: h.spawner,
		Prober:  h.prober,
	})
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.supervisor.Shutdown(ctx)
	})
	return h
}

func (h *harness) start(t *testing.T, kind runner.Kind, user string) *Session {
	t.Helper()
	session, err := h.supervisor.Start(context.Background(), Request{Kind: kind, User: user})
	if err != nil {
		t.Fatalf("Start(%s, %s): %v", kind, user, err)
	}
	return session
}

func (h *harness) stop(t *testing.T, session *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.supervisor.Stop(ctx, session.ID()); err != nil {
		t.Fatalf("Stop(%s): %v", session.ID(), err)
	}
}

// startAsync runs Start on another goroutine for tests that must move
// the clock while Start is blocked.
func (h *harness) startAsync(kind runner.Kind, user string) <-chan startResult {
	results := make(chan startResult, 1)
	go func() {
		session, err := h.supervisor.Start(context.Background(), Request{Kind: kind, User: user})
		results <- startResult{session: session, err: err}
	}()
	return results
}

type startResult struct {
	session *Session
	err     error
}

// waitForState polls a session goroutine's progress after the fake
// clock has been advanced.
func waitForState(t *testing.T, session *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second) //nolint:realclock test hang prevention
	for session.Status().State != want {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("session %s in state %s, want %s", session.ID(), session.Status().State, want)
		}
		time.Sleep(time.Millisecond) //nolint:realclock test hang prevention
	}
}

func requireDone(t *testing.T, session *Session) Status {
	t.Helper()
	testutil.RequireClosed(t, session.Done(), 5*time.Second, "session %s teardown", session.ID())
	return session.Status()
}

// requireBalanced asserts that active matches the outcome counters.
func requireBalanced(t *testing.T, snapshot metrics.Snapshot) {
	t.Helper()
	ended := snapshot.FailedSessions + snapshot.IdleTerminations + snapshot.CompletedSessions
	if uint64(snapshot.ActiveSessions) != snapshot.TotalSessions-ended {
		t.Fatalf("metrics unbalanced: %+v", snapshot)
	}
}
