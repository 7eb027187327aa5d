// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/config"
	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/session"
	"github.com/infractura/ssh-desktop/lib/testutil"
)

var testEpoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// busyPorts reports every port as taken.
type busyPorts struct{ base port.Port }

func (p busyPorts) Derive(number display.Number) port.Port { return p.base + port.Port(number) }

func (busyPorts) CheckAvailable(context.Context, port.Port) bool { return false }

func testConfig(t *testing.T, withHistory bool) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DisplayMin = 200
	cfg.DisplayMax = 203
	cfg.IdleTimeout = config.Duration{}
	cfg.RetainTerminated = config.Duration{}
	if withHistory {
		cfg.History.Dir = t.TempDir()
	}
	return cfg
}

func newTestDaemon(t *testing.T, cfg *config.Config, options daemonOptions) (*Daemon, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(testEpoch)
	options.clock = fake
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	daemon, err := newDaemon(cfg, options)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		daemon.shutdown(ctx)
	})
	return daemon, fake
}

func mustOK(t *testing.T, response ipc.Response) ipc.Response {
	t.Helper()
	if err := response.Err(); err != nil {
		t.Fatalf("response failed: %v", err)
	}
	return response
}

func startEcho(t *testing.T, daemon *Daemon, user string) session.Status {
	t.Helper()
	response := mustOK(t, daemon.Handle(context.Background(), &ipc.Request{
		Action: ipc.ActionStartSession,
		Kind:   "echo",
		User:   user,
	}))
	if response.Session == nil {
		t.Fatal("start response carries no session")
	}
	return *response.Session
}

func TestHandleSessionLifecycle(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{})
	ctx := context.Background()

	started := startEcho(t, daemon, "ana")
	if started.State != session.StateRunning {
		t.Fatalf("started state = %s, want running", started.State)
	}

	response := mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionTouchSession, SessionID: started.ID}))
	if response.Session != nil {
		t.Error("touch should not return a session")
	}

	response = mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionSessionStatus, SessionID: started.ID}))
	if response.Session.ID != started.ID || response.Session.User != "ana" {
		t.Errorf("status = %+v", response.Session)
	}

	response = mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionListSessions}))
	if len(response.Sessions) != 1 {
		t.Fatalf("list returned %d sessions, want 1", len(response.Sessions))
	}

	response = mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionStopSession, SessionID: started.ID}))
	if response.Session.State != session.StateTerminated || response.Session.Outcome != session.OutcomeNormal {
		t.Errorf("stopped session = %s/%s, want terminated/normal", response.Session.State, response.Session.Outcome)
	}

	// Stop is idempotent.
	mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionStopSession, SessionID: started.ID}))

	response = mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionWaitSession, SessionID: started.ID}))
	if response.Session.State != session.StateTerminated {
		t.Errorf("wait returned state %s", response.Session.State)
	}

	response = mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionMetrics}))
	if response.Metrics.TotalSessions != 1 || response.Metrics.ActiveSessions != 0 || response.Metrics.CompletedSessions != 1 {
		t.Errorf("metrics = %+v", response.Metrics)
	}
}

func TestHandleErrors(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{})
	ctx := context.Background()

	tests := []struct {
		name    string
		request ipc.Request
		want    error
	}{
		{"unknown action", ipc.Request{Action: "reboot"}, session.ErrInvalidRequest},
		{"bad kind", ipc.Request{Action: ipc.ActionStartSession, Kind: "vnc", User: "ana"}, session.ErrInvalidRequest},
		{"missing user", ipc.Request{Action: ipc.ActionStartSession, Kind: "echo"}, session.ErrInvalidRequest},
		{"status of unknown", ipc.Request{Action: ipc.ActionSessionStatus, SessionID: "nope"}, session.ErrSessionNotFound},
		{"stop unknown", ipc.Request{Action: ipc.ActionStopSession, SessionID: "nope"}, session.ErrSessionNotFound},
		{"touch unknown", ipc.Request{Action: ipc.ActionTouchSession, SessionID: "nope"}, session.ErrSessionNotFound},
		{"wait unknown", ipc.Request{Action: ipc.ActionWaitSession, SessionID: "nope"}, session.ErrSessionNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := daemon.Handle(ctx, &test.request)
			if response.OK {
				t.Fatal("expected failure")
			}
			if err := response.Err(); !errors.Is(err, test.want) {
				t.Errorf("error = %v, want %v", err, test.want)
			}
		})
	}
}

func TestHandleStartPortUnavailable(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{ports: busyPorts{base: 14500}})

	response := daemon.Handle(context.Background(), &ipc.Request{
		Action: ipc.ActionStartSession,
		Kind:   "graphical",
		User:   "ana",
	})
	if response.ErrorKind != ipc.KindPortUnavailable {
		t.Fatalf("error kind = %q (%s), want %q", response.ErrorKind, response.Error, ipc.KindPortUnavailable)
	}
	if held := daemon.supervisor.Pool().AllocatedCount(); held != 0 {
		t.Errorf("display pool holds %d after port failure, want 0", held)
	}
	if snapshot := daemon.supervisor.Metrics().Snapshot(); snapshot.TotalSessions != 0 {
		t.Errorf("port failure counted as a start: %+v", snapshot)
	}
}

func TestHandleStatus(t *testing.T) {
	cfg := testConfig(t, true)
	daemon, _ := newTestDaemon(t, cfg, daemonOptions{})
	startEcho(t, daemon, "ana")

	response := mustOK(t, daemon.Handle(context.Background(), &ipc.Request{Action: ipc.ActionStatus}))
	if response.Daemon == nil || response.Metrics == nil {
		t.Fatalf("status response incomplete: %+v", response)
	}
	info := response.Daemon
	if info.DisplayMin != 200 || info.DisplayMax != 203 || info.BasePort != 14500 {
		t.Errorf("daemon info = %+v", info)
	}
	if info.HistoryDir != cfg.History.Dir {
		t.Errorf("history dir = %q, want %q", info.HistoryDir, cfg.History.Dir)
	}
	if !info.StartedAt.Equal(testEpoch) {
		t.Errorf("started at = %v, want %v", info.StartedAt, testEpoch)
	}
	if len(response.Sessions) != 1 || response.Metrics.ActiveSessions != 1 {
		t.Errorf("sessions = %d, active = %d", len(response.Sessions), response.Metrics.ActiveSessions)
	}
}

func TestHandleAnalyze(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, true), daemonOptions{})
	ctx := context.Background()

	for _, user := range []string{"ana", "bo"} {
		started := startEcho(t, daemon, user)
		mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionStopSession, SessionID: started.ID}))
	}

	response := mustOK(t, daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionAnalyze}))
	analysis := response.Analysis
	if analysis.TotalSessions != 2 || analysis.EndedSessions != 2 {
		t.Errorf("analysis totals = %d/%d, want 2/2", analysis.TotalSessions, analysis.EndedSessions)
	}
	if len(analysis.Users) != 2 {
		t.Errorf("analysis users = %d, want 2", len(analysis.Users))
	}
	if analysis.Hourly[9] != 2 {
		t.Errorf("hour 9 = %d, want 2", analysis.Hourly[9])
	}
	if !analysis.End.Equal(testEpoch) || !analysis.Start.Equal(testEpoch.Add(-defaultAnalysisWindow)) {
		t.Errorf("period = %v..%v", analysis.Start, analysis.End)
	}

	inverted := daemon.Handle(ctx, &ipc.Request{Action: ipc.ActionAnalyze, Since: testEpoch, Until: testEpoch.Add(-time.Hour)})
	if inverted.ErrorKind != ipc.KindInvalidRequest {
		t.Errorf("inverted period error kind = %q", inverted.ErrorKind)
	}
}

func TestHandleAnalyzeWithoutHistory(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{})
	response := daemon.Handle(context.Background(), &ipc.Request{Action: ipc.ActionAnalyze})
	if response.OK || response.ErrorKind != ipc.KindInternal {
		t.Errorf("response = %+v, want internal failure", response)
	}
}

func TestShutdownRecordsFinalMetrics(t *testing.T) {
	cfg := testConfig(t, true)
	daemon, _ := newTestDaemon(t, cfg, daemonOptions{})
	startEcho(t, daemon, "ana")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := daemon.shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	records, err := history.ReadMetrics(cfg.History.Dir)
	if err != nil {
		t.Fatalf("ReadMetrics: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("metrics records = %d, want 1", len(records))
	}
	if records[0].Metrics.TotalSessions != 1 || records[0].Metrics.ActiveSessions != 0 {
		t.Errorf("final snapshot = %+v", records[0].Metrics)
	}

	events, err := history.ReadEvents(cfg.History.Dir)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(events) != 2 || events[0].Type != history.EventCreated || events[1].Type != history.EventTerminated {
		t.Errorf("events = %+v, want created then terminated", events)
	}
}

func TestMaintenanceRecordsMetrics(t *testing.T) {
	cfg := testConfig(t, true)
	daemon, fake := newTestDaemon(t, cfg, daemonOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		daemon.runMaintenance(ctx)
	}()
	defer func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "runMaintenance did not return")
	}()

	fake.WaitForTimers(2)
	fake.Advance(cfg.History.MetricsInterval.Duration)

	deadline := time.Now().Add(5 * time.Second) //nolint:realclock test hang prevention
	for {
		records, err := history.ReadMetrics(cfg.History.Dir)
		if err != nil {
			t.Fatalf("ReadMetrics: %v", err)
		}
		if len(records) == 1 {
			if !records[0].Timestamp.Equal(testEpoch.Add(cfg.History.MetricsInterval.Duration)) {
				t.Errorf("record timestamp = %v", records[0].Timestamp)
			}
			return
		}
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("metrics records = %d after tick, want 1", len(records))
		}
		time.Sleep(10 * time.Millisecond) //nolint:realclock polling a file written by another goroutine
	}
}

func TestMaintenanceWithoutHistoryReturns(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		daemon.runMaintenance(context.Background())
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "runMaintenance should return without a journal")
}

func TestServeOverSocket(t *testing.T) {
	daemon, _ := newTestDaemon(t, testConfig(t, false), daemonOptions{})
	socketPath := filepath.Join(testutil.SocketDir(t), "run", "desktopd.sock")

	listener, err := listenSocket(socketPath)
	if err != nil {
		t.Fatalf("listenSocket: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		ipc.Serve(ctx, listener, daemon, daemon.logger)
	}()
	defer func() {
		cancel()
		testutil.RequireClosed(t, served, 5*time.Second, "Serve did not return")
	}()

	response, err := ipc.Do(ctx, socketPath, ipc.Request{Action: ipc.ActionStartSession, Kind: "echo", User: "ana"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := response.Session.ID

	response, err = ipc.Do(ctx, socketPath, ipc.Request{Action: ipc.ActionListSessions})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(response.Sessions) != 1 || response.Sessions[0].ID != id {
		t.Errorf("list = %+v", response.Sessions)
	}

	if _, err := ipc.Do(ctx, socketPath, ipc.Request{Action: ipc.ActionSessionStatus, SessionID: "missing"}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("status of missing session: %v, want ErrSessionNotFound", err)
	}
}

func TestListenSocketReplacesStaleFile(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "desktopd.sock")
	first, err := listenSocket(socketPath)
	if err != nil {
		t.Fatalf("first listen: %v", err)
	}
	// Leave the socket file behind, as a crashed daemon would.
	first.(interface{ SetUnlinkOnClose(bool) }).SetUnlinkOnClose(false)
	first.Close()

	second, err := listenSocket(socketPath)
	if err != nil {
		t.Fatalf("listen over stale socket: %v", err)
	}
	second.Close()
}

func TestSessionConfigCarriesSettings(t *testing.T) {
	cfg := config.Default()
	converted := sessionConfig(cfg)
	if converted.IdleTimeout != time.Hour || converted.IdleHardTimeout != 2*time.Hour {
		t.Errorf("idle timeouts = %v/%v", converted.IdleTimeout, converted.IdleHardTimeout)
	}
	if converted.MaxSessionsPerUser != 5 || converted.WindowManager != "gnome-flashback" || converted.XpraBinary != "xpra" {
		t.Errorf("converted = %+v", converted)
	}
}
