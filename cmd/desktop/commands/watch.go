// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/infractura/ssh-desktop/cmd/desktop/cli"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/statusview"
)

type watchParams struct {
	connection
	interval time.Duration
	noColor  bool
}

func watchCommand(out *output) *cli.Command {
	var params watchParams
	return &cli.Command{
		Name:    "watch",
		Summary: "Live status view",
		Description: `Show the status view full screen and refresh it periodically.
Press r to refresh now and q to quit.`,
		Usage: "desktop watch [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.DurationVar(&params.interval, "interval", 2*time.Second, "refresh interval")
			flagSet.BoolVar(&params.noColor, "no-color", false, "disable colors")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 0, "desktop watch [flags]"); err != nil {
				return err
			}
			fetch := func(ctx context.Context) (statusview.Report, error) {
				response, err := params.do(ctx, ipc.Request{Action: ipc.ActionStatus})
				if err != nil {
					return statusview.Report{}, err
				}
				return statusview.FromResponse(response, time.Now()), nil
			}
			model := statusview.NewWatchModel(fetch, params.interval, out.color(params.noColor))
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(out.writer))
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("running watch view: %w", err)
			}
			return nil
		},
	}
}
