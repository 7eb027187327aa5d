// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/infractura/ssh-desktop/cmd/desktop/cli"
	"github.com/infractura/ssh-desktop/lib/history"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/statusview"
)

type analyzeParams struct {
	connection
	since   string
	until   string
	dir     string
	json    bool
	noColor bool
}

func analyzeCommand(out *output) *cli.Command {
	var params analyzeParams
	return &cli.Command{
		Name:    "analyze",
		Summary: "Summarize session history for a period",
		Description: `Summarize journaled session history: totals, average duration, peak
concurrency, idle terminations, failures, per-user figures and starts
per hour. Reads rotated archives as well as the live journal.

--since and --until take an RFC 3339 time or a Go duration before now
such as 168h. By default the last 24 hours are analyzed. With --dir the journal directory is read directly and the
daemon is not contacted.`,
		Usage: "desktop analyze [flags]",
		Examples: []cli.Example{
			{Description: "Last week, from the daemon", Command: "desktop analyze --since 168h"},
			{Description: "A copied journal, offline", Command: "desktop analyze --dir ./history --since 2026-03-01T00:00:00Z --until 2026-03-08T00:00:00Z"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.StringVar(&params.since, "since", "24h", "period start (RFC 3339 or duration before now)")
			flagSet.StringVar(&params.until, "until", "", "period end (RFC 3339 or duration before now; default now)")
			flagSet.StringVar(&params.dir, "dir", "", "read this journal directory instead of asking the daemon")
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			flagSet.BoolVar(&params.noColor, "no-color", false, "disable colors")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 0, "desktop analyze [flags]"); err != nil {
				return err
			}
			now := time.Now()
			until := now
			if params.until != "" {
				parsed, err := parsePointInTime(params.until, now)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				until = parsed
			}
			since, err := parsePointInTime(params.since, now)
			if err != nil {
				return fmt.Errorf("--since: %w", err)
			}

			var analysis history.Analysis
			if params.dir != "" {
				analysis, err = history.Analyze(params.dir, since, until)
				if err != nil {
					return err
				}
			} else {
				response, err := params.do(ctx, ipc.Request{Action: ipc.ActionAnalyze, Since: since, Until: until})
				if err != nil {
					return fmt.Errorf("analyzing history: %w", err)
				}
				analysis = *response.Analysis
			}

			if params.json {
				return cli.WriteJSON(out.writer, analysis)
			}
			return statusview.RenderAnalysis(out.writer, analysis, statusview.Options{
				Color: out.color(params.noColor),
				Width: out.width(),
			})
		},
	}
}

// parsePointInTime accepts an RFC 3339 timestamp or a non-negative Go
// duration measured back from now.
func parsePointInTime(value string, now time.Time) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither an RFC 3339 time nor a duration", value)
	}
	if duration < 0 {
		return time.Time{}, fmt.Errorf("duration %q must not be negative", value)
	}
	return now.Add(-duration), nil
}
