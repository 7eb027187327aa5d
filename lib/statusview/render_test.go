// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusview

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/infractura/ssh-desktop/lib/display"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
	"github.com/infractura/ssh-desktop/lib/session"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testReport() Report {
	displayNumber := display.Number(101)
	forwardPort := port.Port(14601)
	ended := testNow.Add(-time.Minute)
	return Report{
		Daemon: ipc.DaemonInfo{
			Version:            "v1.2.3",
			DisplayMin:         100,
			DisplayMax:         599,
			DisplaysHeld:       1,
			BasePort:           14500,
			IdleTimeout:        time.Hour,
			IdleHardTimeout:    2 * time.Hour,
			MaxSessionsPerUser: 5,
			WindowManager:      "gnome-flashback",
		},
		Sessions: []session.Status{
			{
				ID:             "3f2a9c10-7d5e-4b8a-9f1e-2c6d8a4b0e71",
				User:           "ana",
				Kind:           runner.KindGraphical,
				Display:        &displayNumber,
				Port:           &forwardPort,
				State:          session.StateRunning,
				StartedAt:      testNow.Add(-5 * time.Minute),
				LastActivityAt: testNow.Add(-2 * time.Minute),
				IdleSeconds:    120,
			},
			{
				ID:          "9b1d",
				User:        "averyveryverylongusername",
				Kind:        runner.KindShell,
				State:       session.StateTerminated,
				Outcome:     session.OutcomeFailed,
				StartedAt:   testNow.Add(-3 * time.Hour),
				EndedAt:     &ended,
				IdleSeconds: 0,
			},
		},
		Metrics: metrics.Snapshot{
			TotalSessions:     1234,
			ActiveSessions:    1,
			FailedSessions:    1,
			CompletedSessions: 1232,
			UptimeSeconds:     3725,
		},
		FetchedAt: testNow,
	}
}

func TestRenderStatusPlain(t *testing.T) {
	var buffer bytes.Buffer
	if err := RenderStatus(&buffer, testReport(), Options{}); err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	output := buffer.String()

	if strings.Contains(output, "\x1b[") {
		t.Errorf("plain output contains escape sequences:\n%s", output)
	}
	for _, want := range []string{
		"ssh-desktop",
		"v1.2.3",
		"1h 2m 5s",
		":100-:599, 1/500 held",
		"14500+display",
		"gnome-flashback",
		"Sessions (1 live)",
		":101",
		"14601",
		"running",
		"5 minutes ago",
		"terminated (failed)",
		"3 hours ago",
		"total 1,234",
		"completed 1,232",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestMetricsLineShowsEveryCounter(t *testing.T) {
	line := metricsLine(newStyles(&bytes.Buffer{}, false), metrics.Snapshot{
		TotalSessions:     20000,
		ActiveSessions:    3,
		CompletedSessions: 15000,
		FailedSessions:    1997,
		IdleTerminations:  3000,
	})
	for _, want := range []string{
		"total 20,000",
		"active 3",
		"completed 15,000",
		"failed 1,997",
		"idle terminations 3,000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("metricsLine = %q, missing %q", line, want)
		}
	}
}

func TestRenderStatusTruncatesLongCells(t *testing.T) {
	var buffer bytes.Buffer
	if err := RenderStatus(&buffer, testReport(), Options{}); err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	output := buffer.String()

	if strings.Contains(output, "averyveryverylongusername") {
		t.Error("long user name was not truncated")
	}
	if !strings.Contains(output, "averyveryverylo…") {
		t.Errorf("expected truncated user name with ellipsis:\n%s", output)
	}
	if !strings.Contains(output, "3f2a9c1…") {
		t.Errorf("expected truncated session id:\n%s", output)
	}
}

func TestRenderStatusNarrowWidth(t *testing.T) {
	var buffer bytes.Buffer
	if err := RenderStatus(&buffer, testReport(), Options{Width: 60}); err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	if strings.Contains(buffer.String(), "averyveryverylo…") {
		t.Error("user column did not shrink for a narrow terminal")
	}
}

func TestRenderStatusEmpty(t *testing.T) {
	var buffer bytes.Buffer
	report := Report{FetchedAt: testNow}
	if err := RenderStatus(&buffer, report, Options{}); err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	output := buffer.String()
	if !strings.Contains(output, "no sessions") {
		t.Errorf("empty report should say no sessions:\n%s", output)
	}
	if !strings.Contains(output, "disabled") || !strings.Contains(output, "unlimited") {
		t.Errorf("zero idle timeout and limit should render as disabled/unlimited:\n%s", output)
	}
}

func TestRenderAnalysis(t *testing.T) {
	analysis := history.Analysis{
		Start:            testNow.Add(-24 * time.Hour),
		End:              testNow,
		TotalSessions:    3,
		EndedSessions:    3,
		AverageDuration:  50 * time.Minute,
		MaxConcurrent:    2,
		IdleTerminations: 1,
		Users: []history.UserStats{
			{User: "ana", Sessions: 2, TotalDuration: 50 * time.Minute, AverageDuration: 25 * time.Minute, IdleTerminations: 1},
			{User: "bo", Sessions: 1, TotalDuration: 100 * time.Minute, AverageDuration: 100 * time.Minute},
		},
	}
	analysis.Hourly[9] = 2
	analysis.Hourly[10] = 1

	var buffer bytes.Buffer
	if err := RenderAnalysis(&buffer, analysis, Options{}); err != nil {
		t.Fatalf("RenderAnalysis: %v", err)
	}
	output := buffer.String()

	for _, want := range []string{
		"2026-02-28T12:00:00Z",
		"average duration  50m 0s",
		"max concurrent    2",
		"ana",
		"25m 0s",
		"1h 40m 0s",
		"09 " + strings.Repeat("#", histogramWidth) + " 2",
		"10 " + strings.Repeat("#", histogramWidth/2) + " 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("analysis output missing %q:\n%s", want, output)
		}
	}
	if !strings.Contains(output, "\n11 \n") {
		t.Errorf("empty hour should render without a bar:\n%s", output)
	}
}

func TestFromResponse(t *testing.T) {
	response := ipc.Success()
	response.Daemon = &ipc.DaemonInfo{Version: "v1"}
	response.Metrics = &metrics.Snapshot{TotalSessions: 2}
	response.Sessions = []session.Status{{ID: "a", State: session.StateIdle}, {ID: "b", State: session.StateTerminated}}

	report := FromResponse(&response, testNow)
	if report.Daemon.Version != "v1" || report.Metrics.TotalSessions != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.LiveSessions() != 1 {
		t.Errorf("LiveSessions() = %d, want 1", report.LiveSessions())
	}

	empty := FromResponse(&ipc.Response{OK: true}, testNow)
	if empty.Daemon.Version != "" || len(empty.Sessions) != 0 {
		t.Errorf("empty report = %+v", empty)
	}
}
