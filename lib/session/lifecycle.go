// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"syscall"
	"time"

	"github.com/infractura/ssh-desktop/lib/runner"
)

// supervise owns process for the lifetime of the session. It reports
// the result of startup on ready (after any failure teardown has
// completed), then watches for stop requests, process exit and idle
// deadlines until exactly one of them tears the session down.
func (s *Session) supervise(process Process, ready chan<- error) {
	var exited <-chan error
	if process != nil {
		channel := make(chan error, 1)
		go func() { channel <- process.Wait() }()
		exited = channel
	}

	if err := s.awaitReady(process, exited); err != nil {
		ready <- err
		return
	}

	config := s.supervisor.config
	var idleTick <-chan time.Time
	if config.IdleTimeout > 0 {
		ticker := s.supervisor.clock.NewTicker(config.IdleCheckInterval)
		defer ticker.Stop()
		idleTick = ticker.C
	}

	s.mu.Lock()
	select {
	case <-s.stopRequested:
		s.mu.Unlock()
		s.teardown(process, exited, OutcomeKilled, "stopped during startup")
		ready <- &SpawnError{SessionID: s.id, Reason: "stopped during startup"}
		return
	default:
	}
	s.state = StateRunning
	s.mu.Unlock()
	ready <- nil

	for {
		select {
		case <-s.stopRequested:
			outcome := OutcomeKilled
			if process == nil {
				outcome = OutcomeNormal
			}
			s.teardown(process, exited, outcome, "")
			return

		case err := <-exited:
			outcome := OutcomeNormal
			errorText := ""
			if err != nil {
				outcome = OutcomeFailed
				errorText = err.Error()
			}
			s.teardownExited(process, outcome, errorText)
			return

		case <-idleTick:
			if s.checkIdle() {
				s.teardown(process, exited, OutcomeIdleTimeout, "")
				return
			}
		}
	}
}

// awaitReady blocks until a graphical session's server answers, the
// startup deadline passes, the process exits, or a stop is requested.
// Other kinds are ready as soon as they are spawned. On failure the
// session is torn down before the error is returned.
func (s *Session) awaitReady(process Process, exited <-chan error) error {
	if s.kind != runner.KindGraphical {
		return nil
	}

	config := s.supervisor.config
	forwardPort := s.spec().Port
	deadline := s.supervisor.clock.After(config.StartupTimeout)
	for {
		if s.supervisor.prober.Ready(s.ctx, forwardPort) {
			return nil
		}
		select {
		case <-s.supervisor.clock.After(config.ReadinessPoll):

		case <-deadline:
			reason := fmt.Sprintf("not accepting connections after %v", config.StartupTimeout)
			s.teardown(process, exited, OutcomeFailed, reason)
			return &SpawnError{SessionID: s.id, Reason: reason}

		case err := <-exited:
			reason := "exited during startup"
			errorText := reason
			if err != nil {
				errorText = reason + ": " + err.Error()
			}
			s.teardownExited(process, OutcomeFailed, errorText)
			return &SpawnError{SessionID: s.id, Reason: reason, Err: err}

		case <-s.stopRequested:
			s.teardown(process, exited, OutcomeKilled, "stopped during startup")
			return &SpawnError{SessionID: s.id, Reason: "stopped during startup"}
		}
	}
}

// teardown ends a session whose process may still be running.
func (s *Session) teardown(process Process, exited <-chan error, outcome Outcome, errorText string) {
	s.teardownOnce.Do(func() {
		s.beginTerminating(outcome)
		if process != nil {
			s.terminate(process, exited)
		}
		s.finish(outcome, errorText)
	})
}

// teardownExited ends a session whose process leader has already been
// reaped. Remaining members of its group are killed.
func (s *Session) teardownExited(process Process, outcome Outcome, errorText string) {
	s.teardownOnce.Do(func() {
		s.beginTerminating(outcome)
		if err := process.Kill(); err != nil {
			s.logger.Debug("killing remaining process group members", "error", err)
		}
		s.finish(outcome, errorText)
	})
}

// abandon unwinds a session whose process never started.
func (s *Session) abandon(err *SpawnError) {
	s.teardownOnce.Do(func() {
		s.beginTerminating(OutcomeFailed)
		s.finish(OutcomeFailed, err.Error())
	})
}

// discard unwinds a session that failed before it was counted as
// started. Nothing reaches the metrics or the journal; waiters are
// released.
func (s *Session) discard(errorText string) {
	s.teardownOnce.Do(func() {
		now := s.supervisor.clock.Now()
		s.mu.Lock()
		s.state = StateTerminated
		s.outcome = OutcomeFailed
		s.endedAt = now
		s.errorText = errorText
		s.mu.Unlock()

		s.cancel()
		close(s.done)
		s.logger.Info("session abandoned before start", "error", errorText)
	})
}

func (s *Session) beginTerminating(outcome Outcome) {
	s.mu.Lock()
	s.state = StateTerminating
	s.outcome = outcome
	s.mu.Unlock()
	s.logger.Info("terminating session", "outcome", string(outcome))
}

// terminate sends SIGTERM to the process group, waits up to the grace
// period, then sends SIGKILL and waits up to the grace period again.
func (s *Session) terminate(process Process, exited <-chan error) {
	grace := s.supervisor.config.TerminationGrace
	clk := s.supervisor.clock

	if err := process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn("SIGTERM to process group failed", "pid", process.Pid(), "error", err)
	}
	select {
	case <-exited:
		if err := process.Kill(); err != nil {
			s.logger.Debug("killing remaining process group members", "error", err)
		}
		return
	case <-clk.After(grace):
	}

	s.logger.Warn("process group did not exit after SIGTERM, killing",
		"pid", process.Pid(), "grace", grace.String())
	if err := process.Kill(); err != nil {
		s.logger.Warn("SIGKILL to process group failed", "pid", process.Pid(), "error", err)
	}
	select {
	case <-exited:
	case <-clk.After(grace):
		s.logger.Error("process did not exit after SIGKILL", "pid", process.Pid())
	}
}

// finish releases the display, records the outcome, and publishes the
// terminal state.
func (s *Session) finish(outcome Outcome, errorText string) {
	s.mu.Lock()
	held := s.display
	s.mu.Unlock()
	if held != nil {
		s.supervisor.pool.Release(*held)
	}

	switch outcome {
	case OutcomeNormal, OutcomeKilled:
		s.supervisor.metrics.RecordSuccess()
	case OutcomeFailed:
		s.supervisor.metrics.RecordFailure()
	case OutcomeIdleTimeout:
		s.supervisor.metrics.RecordIdleTermination()
	}
	s.supervisor.record(s.event(outcome.eventType(), errorText))

	now := s.supervisor.clock.Now()
	s.mu.Lock()
	s.state = StateTerminated
	s.endedAt = now
	s.errorText = errorText
	s.mu.Unlock()

	s.cancel()
	close(s.done)

	attributes := []any{"outcome", string(outcome), "duration", now.Sub(s.startedAt).String()}
	if errorText != "" {
		attributes = append(attributes, "error", errorText)
	}
	s.logger.Info("session terminated", attributes...)
}
