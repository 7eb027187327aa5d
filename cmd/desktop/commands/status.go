// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/infractura/ssh-desktop/cmd/desktop/cli"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/session"
	"github.com/infractura/ssh-desktop/lib/statusview"
)

type statusParams struct {
	connection
	json    bool
	noColor bool
}

func statusCommand(out *output) *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status or one session",
		Description: `Without arguments, show the daemon configuration, every session it
knows about, and its metrics. With a session id, show that session.`,
		Usage: "desktop status [flags] [session-id]",
		Examples: []cli.Example{
			{Description: "Overview", Command: "desktop status"},
			{Description: "One session as JSON", Command: "desktop status --json 3f2a9c10-7d5e-4b8a-9f1e-2c6d8a4b0e71"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			flagSet.BoolVar(&params.noColor, "no-color", false, "disable colors")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			switch len(args) {
			case 0:
				response, err := params.do(ctx, ipc.Request{Action: ipc.ActionStatus})
				if err != nil {
					return fmt.Errorf("fetching status: %w", err)
				}
				report := statusview.FromResponse(response, time.Now())
				if params.json {
					return cli.WriteJSON(out.writer, report)
				}
				return statusview.RenderStatus(out.writer, report, statusview.Options{
					Color: out.color(params.noColor),
					Width: out.width(),
				})
			case 1:
				response, err := params.do(ctx, ipc.Request{Action: ipc.ActionSessionStatus, SessionID: args[0]})
				if err != nil {
					return fmt.Errorf("fetching %s: %w", args[0], err)
				}
				if params.json {
					return cli.WriteJSON(out.writer, response.Session)
				}
				writeSessionDetail(out.writer, *response.Session)
				return nil
			default:
				return fmt.Errorf("usage: desktop status [flags] [session-id]")
			}
		},
	}
}

func writeSessionDetail(w io.Writer, status session.Status) {
	fmt.Fprintf(w, "id:        %s\n", status.ID)
	fmt.Fprintf(w, "user:      %s\n", status.User)
	fmt.Fprintf(w, "kind:      %s\n", status.Kind)
	fmt.Fprintf(w, "state:     %s\n", status.State)
	if status.Outcome != "" {
		fmt.Fprintf(w, "outcome:   %s\n", status.Outcome)
	}
	if status.Display != nil {
		fmt.Fprintf(w, "display:   %s\n", status.Display)
	}
	if status.Port != nil {
		fmt.Fprintf(w, "port:      %d\n", *status.Port)
	}
	if status.PID != 0 {
		fmt.Fprintf(w, "pid:       %d\n", status.PID)
	}
	fmt.Fprintf(w, "started:   %s\n", status.StartedAt.Format(time.RFC3339))
	if status.State.Live() {
		fmt.Fprintf(w, "idle:      %s\n", metrics.FormatDuration(time.Duration(status.IdleSeconds)*time.Second))
	}
	if status.EndedAt != nil {
		fmt.Fprintf(w, "ended:     %s\n", status.EndedAt.Format(time.RFC3339))
	}
	if status.Error != "" {
		fmt.Fprintf(w, "error:     %s\n", status.Error)
	}
}

func metricsCommand(out *output) *cli.Command {
	var params connection
	return &cli.Command{
		Name:    "metrics",
		Summary: "Print the daemon's session counters as JSON",
		Usage:   "desktop metrics [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("metrics", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 0, "desktop metrics [flags]"); err != nil {
				return err
			}
			response, err := params.do(ctx, ipc.Request{Action: ipc.ActionMetrics})
			if err != nil {
				return fmt.Errorf("fetching metrics: %w", err)
			}
			return cli.WriteJSON(out.writer, response.Metrics)
		},
	}
}
