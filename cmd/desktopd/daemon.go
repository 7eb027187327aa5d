// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/config"
	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
	"github.com/infractura/ssh-desktop/lib/session"
	"github.com/infractura/ssh-desktop/lib/version"
)

// defaultAnalysisWindow is the analyze period when the request gives no
// start.
const defaultAnalysisWindow = 24 * time.Hour

var errHistoryDisabled = errors.New("history journal is disabled (history.dir is not set)")

// daemonOptions overrides collaborators in tests. Zero fields take the
// production default.
type daemonOptions struct {
	clock   clock.Clock
	logger  *slog.Logger
	ports   port.Checker
	spawner session.Spawner
	prober  session.Prober
}

// Daemon answers control socket requests against one supervisor.
type Daemon struct {
	config     *config.Config
	clock      clock.Clock
	logger     *slog.Logger
	supervisor *session.Supervisor
	journal    *history.Journal
	startedAt  time.Time
}

func newDaemon(cfg *config.Config, options daemonOptions) (*Daemon, error) {
	if options.clock == nil {
		options.clock = clock.Real()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	pool, err := display.NewPool(display.Number(cfg.DisplayMin), display.Number(cfg.DisplayMax), options.logger)
	if err != nil {
		return nil, fmt.Errorf("creating display pool: %w", err)
	}
	if options.ports == nil {
		options.ports = port.NewResolver(port.Port(cfg.BasePort), cfg.ProbeAddress, cfg.ProbeTimeout.Duration)
	}

	var journal *history.Journal
	supervisorOptions := session.Options{
		Config:  sessionConfig(cfg),
		Pool:    pool,
		Ports:   options.ports,
		Metrics: metrics.New(options.clock),
		Clock:   options.clock,
		Logger:  options.logger,
		Spawner: options.spawner,
		Prober:  options.prober,
	}
	if cfg.History.Dir != "" {
		compression, err := history.ParseCompression(cfg.History.Compression)
		if err != nil {
			return nil, err
		}
		journal, err = history.Open(cfg.History.Dir, history.Options{
			MaxSize:     cfg.History.MaxSize,
			MaxAge:      cfg.History.MaxAge.Duration,
			Compression: compression,
			Clock:       options.clock,
			Logger:      options.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening history journal: %w", err)
		}
		supervisorOptions.Journal = journal
	}

	supervisor, err := session.NewSupervisor(supervisorOptions)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}

	return &Daemon{
		config:     cfg,
		clock:      options.clock,
		logger:     options.logger,
		supervisor: supervisor,
		journal:    journal,
		startedAt:  options.clock.Now(),
	}, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		IdleTimeout:        cfg.IdleTimeout.Duration,
		IdleHardTimeout:    cfg.IdleHardTimeout.Duration,
		IdleCheckInterval:  cfg.IdleCheckInterval.Duration,
		TerminationGrace:   cfg.TerminationGrace.Duration,
		StartupTimeout:     cfg.StartupTimeout.Duration,
		ReadinessPoll:      cfg.ReadinessPoll.Duration,
		RetainTerminated:   cfg.RetainTerminated.Duration,
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
		WindowManager:      cfg.WindowManager,
		Shell:              cfg.Shell,
		XpraBinary:         cfg.XpraBinary,
	}
}

// Handle dispatches one control socket request.
func (d *Daemon) Handle(ctx context.Context, request *ipc.Request) ipc.Response {
	switch request.Action {
	case ipc.ActionStartSession:
		return d.handleStart(ctx, request)
	case ipc.ActionStopSession:
		return d.handleStop(ctx, request)
	case ipc.ActionTouchSession:
		if err := d.supervisor.Touch(request.SessionID); err != nil {
			return ipc.Failure(err)
		}
		return ipc.Success()
	case ipc.ActionSessionStatus:
		return d.sessionResponse(request.SessionID)
	case ipc.ActionListSessions:
		response := ipc.Success()
		response.Sessions = d.supervisor.List()
		return response
	case ipc.ActionWaitSession:
		status, err := d.supervisor.Wait(ctx, request.SessionID)
		if err != nil {
			return ipc.Failure(err)
		}
		response := ipc.Success()
		response.Session = &status
		return response
	case ipc.ActionMetrics:
		snapshot := d.supervisor.Metrics().Snapshot()
		response := ipc.Success()
		response.Metrics = &snapshot
		return response
	case ipc.ActionStatus:
		snapshot := d.supervisor.Metrics().Snapshot()
		info := d.info()
		response := ipc.Success()
		response.Daemon = &info
		response.Sessions = d.supervisor.List()
		response.Metrics = &snapshot
		return response
	case ipc.ActionAnalyze:
		return d.handleAnalyze(request)
	default:
		return ipc.Failure(fmt.Errorf("%w: unknown action %q", session.ErrInvalidRequest, request.Action))
	}
}

func (d *Daemon) handleStart(ctx context.Context, request *ipc.Request) ipc.Response {
	kind, err := runner.ParseKind(request.Kind)
	if err != nil {
		return ipc.Failure(fmt.Errorf("%w: %v", session.ErrInvalidRequest, err))
	}

	// The client's hangup cancels ctx; bound the start by the startup
	// deadline as well so a wedged spawn cannot pin the handler.
	ctx, cancel := context.WithTimeout(ctx, d.config.StartupTimeout.Duration+d.config.TerminationGrace.Duration*2)
	defer cancel()

	started, err := d.supervisor.Start(ctx, session.Request{
		Kind:          kind,
		User:          request.User,
		WindowManager: request.WindowManager,
		ShellCommand:  request.ShellCommand,
	})
	if err != nil {
		d.logger.Warn("session start failed", "user", request.User, "kind", kind, "error", err)
		return ipc.Failure(err)
	}

	status := started.Status()
	response := ipc.Success()
	response.Session = &status
	return response
}

func (d *Daemon) handleStop(ctx context.Context, request *ipc.Request) ipc.Response {
	if err := d.supervisor.Stop(ctx, request.SessionID); err != nil {
		return ipc.Failure(err)
	}
	return d.sessionResponse(request.SessionID)
}

func (d *Daemon) sessionResponse(id string) ipc.Response {
	status, ok := d.supervisor.Get(id)
	if !ok {
		return ipc.Failure(fmt.Errorf("session %q: %w", id, session.ErrSessionNotFound))
	}
	response := ipc.Success()
	response.Session = &status
	return response
}

func (d *Daemon) handleAnalyze(request *ipc.Request) ipc.Response {
	if d.journal == nil {
		return ipc.Failure(errHistoryDisabled)
	}
	until := request.Until
	if until.IsZero() {
		until = d.clock.Now()
	}
	since := request.Since
	if since.IsZero() {
		since = until.Add(-defaultAnalysisWindow)
	}
	if until.Before(since) {
		return ipc.Failure(fmt.Errorf("%w: analysis period ends before it starts", session.ErrInvalidRequest))
	}
	analysis, err := history.Analyze(d.journal.Dir(), since, until)
	if err != nil {
		return ipc.Failure(fmt.Errorf("analyzing history: %w", err))
	}
	response := ipc.Success()
	response.Analysis = &analysis
	return response
}

func (d *Daemon) info() ipc.DaemonInfo {
	info := ipc.DaemonInfo{
		Version:            version.Info(),
		StartedAt:          d.startedAt,
		DisplayMin:         d.config.DisplayMin,
		DisplayMax:         d.config.DisplayMax,
		DisplaysHeld:       d.supervisor.Pool().AllocatedCount(),
		BasePort:           d.config.BasePort,
		IdleTimeout:        d.config.IdleTimeout.Duration,
		IdleHardTimeout:    d.config.IdleHardTimeout.Duration,
		MaxSessionsPerUser: d.config.MaxSessionsPerUser,
		WindowManager:      d.config.WindowManager,
	}
	if d.journal != nil {
		info.HistoryDir = d.journal.Dir()
	}
	return info
}

// runMaintenance appends metrics snapshots and rotates the journal on
// their configured intervals until ctx is done. It returns at once
// when the journal is disabled.
func (d *Daemon) runMaintenance(ctx context.Context) {
	if d.journal == nil {
		return
	}
	metricsTicker := d.clock.NewTicker(d.config.History.MetricsInterval.Duration)
	defer metricsTicker.Stop()
	rotateTicker := d.clock.NewTicker(d.config.History.RotateInterval.Duration)
	defer rotateTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-metricsTicker.C:
			d.recordMetrics()
		case <-rotateTicker.C:
			if err := d.journal.Rotate(); err != nil {
				d.logger.Error("rotating history journal", "error", err)
			}
		}
	}
}

func (d *Daemon) recordMetrics() {
	snapshot := d.supervisor.Metrics().Snapshot()
	if err := d.journal.RecordMetrics(snapshot, d.supervisor.Summaries()); err != nil {
		d.logger.Error("recording metrics snapshot", "error", err)
	}
}

// shutdown stops every live session, writes a final metrics snapshot,
// and closes the journal.
func (d *Daemon) shutdown(ctx context.Context) error {
	err := d.supervisor.Shutdown(ctx)
	if d.journal != nil {
		d.recordMetrics()
	}
	d.close()
	return err
}

func (d *Daemon) close() {
	if d.journal == nil {
		return
	}
	if err := d.journal.Close(); err != nil {
		d.logger.Error("closing history journal", "error", err)
	}
}
