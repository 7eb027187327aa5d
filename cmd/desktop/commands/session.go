// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/user"
	"time"

	"github.com/spf13/pflag"

	"github.com/infractura/ssh-desktop/cmd/desktop/cli"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/runner"
	"github.com/infractura/ssh-desktop/lib/session"
)

type startParams struct {
	connection
	kind          string
	user          string
	windowManager string
	command       string
	timeout       time.Duration
	json          bool
}

func startCommand(out *output) *cli.Command {
	var params startParams
	return &cli.Command{
		Name:    "start",
		Summary: "Start a graphical or shell session",
		Description: `Start a session and wait until it is ready.

A graphical session gets the lowest free X display and the websocket
port derived from it; the command returns once xpra accepts
connections. A shell session runs the configured shell on a pseudo
terminal.`,
		Usage: "desktop start [flags]",
		Examples: []cli.Example{
			{Description: "Start a desktop with the default window manager", Command: "desktop start"},
			{Description: "Start a desktop running openbox", Command: "desktop start --window-manager openbox"},
			{Description: "Run a command in a shell session", Command: "desktop start --kind shell --command 'htop'"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("start", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.StringVar(&params.kind, "kind", string(runner.KindGraphical), "session kind: graphical, shell or echo")
			flagSet.StringVar(&params.user, "user", "", "user the session belongs to (default: current user)")
			flagSet.StringVar(&params.windowManager, "window-manager", "", "window manager for a graphical session (default: daemon setting)")
			flagSet.StringVar(&params.command, "command", "", "command for a shell session (default: login shell)")
			flagSet.DurationVar(&params.timeout, "timeout", 2*time.Minute, "how long to wait for the session to become ready")
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := requireArgs(args, 0, "desktop start [flags]"); err != nil {
				return err
			}
			owner := params.user
			if owner == "" {
				current, err := user.Current()
				if err != nil {
					return fmt.Errorf("looking up current user (pass --user): %w", err)
				}
				owner = current.Username
			}

			ctx, cancel := context.WithTimeout(ctx, params.timeout)
			defer cancel()
			response, err := params.do(ctx, ipc.Request{
				Action:        ipc.ActionStartSession,
				Kind:          params.kind,
				User:          owner,
				WindowManager: params.windowManager,
				ShellCommand:  params.command,
			})
			if err != nil {
				return fmt.Errorf("starting session: %w", err)
			}
			status := response.Session
			logger.Info("session started", "session_id", status.ID)

			if params.json {
				return cli.WriteJSON(out.writer, status)
			}
			fmt.Fprintln(out.writer, describeStarted(*status))
			return nil
		},
	}
}

// describeStarted matches the bind address xpra is given at spawn.
func describeStarted(status session.Status) string {
	switch {
	case status.Display != nil && status.Port != nil:
		return fmt.Sprintf("session %s running on display %s, websocket ws://127.0.0.1:%d/",
			status.ID, status.Display, *status.Port)
	case status.PID != 0:
		return fmt.Sprintf("session %s running (pid %d)", status.ID, status.PID)
	default:
		return fmt.Sprintf("session %s running", status.ID)
	}
}

func describeEnded(status session.Status) string {
	text := fmt.Sprintf("session %s %s", status.ID, status.State)
	if status.Outcome != "" {
		text += " (" + string(status.Outcome) + ")"
	}
	if status.Error != "" {
		text += ": " + status.Error
	}
	return text
}

func stopCommand(out *output) *cli.Command {
	var params connection
	return &cli.Command{
		Name:    "stop",
		Summary: "Stop one or more sessions",
		Description: `Stop sessions. Each process group gets SIGTERM, then SIGKILL after the
daemon's termination grace. Stopping a session that already ended is
not an error.`,
		Usage: "desktop stop [flags] <session-id>...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stop", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: desktop stop [flags] <session-id>...")
			}
			for _, id := range args {
				response, err := params.do(ctx, ipc.Request{Action: ipc.ActionStopSession, SessionID: id})
				if err != nil {
					return fmt.Errorf("stopping %s: %w", id, err)
				}
				fmt.Fprintln(out.writer, describeEnded(*response.Session))
			}
			return nil
		},
	}
}

func touchCommand(out *output) *cli.Command {
	var params connection
	return &cli.Command{
		Name:    "touch",
		Summary: "Record activity on a session",
		Description: `Record activity on a session, resetting its idle clock. The forwarding
glue calls this whenever traffic crosses the websocket.`,
		Usage: "desktop touch [flags] <session-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("touch", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 1, "desktop touch [flags] <session-id>"); err != nil {
				return err
			}
			if _, err := params.do(ctx, ipc.Request{Action: ipc.ActionTouchSession, SessionID: args[0]}); err != nil {
				return fmt.Errorf("touching %s: %w", args[0], err)
			}
			return nil
		},
	}
}

type waitParams struct {
	connection
	json bool
}

func waitCommand(out *output) *cli.Command {
	var params waitParams
	return &cli.Command{
		Name:    "wait",
		Summary: "Wait for a session to end",
		Description: `Block until a session terminates and print how it ended. Exits 1 when
the session failed.`,
		Usage: "desktop wait [flags] <session-id>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("wait", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.BoolVar(&params.json, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := requireArgs(args, 1, "desktop wait [flags] <session-id>"); err != nil {
				return err
			}
			response, err := params.do(ctx, ipc.Request{Action: ipc.ActionWaitSession, SessionID: args[0]})
			if err != nil {
				return fmt.Errorf("waiting for %s: %w", args[0], err)
			}
			status := response.Session
			if params.json {
				if err := cli.WriteJSON(out.writer, status); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out.writer, describeEnded(*status))
			}
			if status.Outcome == session.OutcomeFailed {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
