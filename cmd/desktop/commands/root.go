// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/infractura/ssh-desktop/cmd/desktop/cli"
	"github.com/infractura/ssh-desktop/lib/config"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/statusview"
	"github.com/infractura/ssh-desktop/lib/version"
)

// SocketEnvironmentVariable overrides the default control socket path.
const SocketEnvironmentVariable = "SSH_DESKTOP_SOCKET"

// Root builds the complete desktop CLI command tree writing results to
// stdout.
func Root(stdout io.Writer) *cli.Command {
	out := &output{writer: stdout}
	return &cli.Command{
		Name: "desktop",
		Description: `desktop: remote desktop and shell sessions over SSH.

Start, inspect and stop sessions managed by desktopd. Graphical
sessions run an xpra server on a private X display; its websocket is
forwarded over the SSH connection.`,
		Subcommands: []*cli.Command{
			startCommand(out),
			stopCommand(out),
			touchCommand(out),
			waitCommand(out),
			statusCommand(out),
			metricsCommand(out),
			analyzeCommand(out),
			watchCommand(out),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(stdout, "desktop %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// output is where commands write results.
type output struct {
	writer io.Writer
}

// color reports whether rendered views should be colored.
func (o *output) color(noColor bool) bool {
	file, ok := o.writer.(*os.File)
	if !ok {
		return false
	}
	return statusview.ColorEnabled(file, noColor)
}

// width returns the terminal width of the output, or zero.
func (o *output) width() int {
	file, ok := o.writer.(*os.File)
	if !ok {
		return 0
	}
	return terminalWidth(file)
}

// connection holds the socket flag shared by daemon-backed commands.
type connection struct {
	socket string
}

func defaultSocket() string {
	if path := os.Getenv(SocketEnvironmentVariable); path != "" {
		return path
	}
	return config.Default().SocketPath
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socket, "socket", defaultSocket(), "desktopd control socket (env "+SocketEnvironmentVariable+")")
}

// do sends one request and returns the response if it is OK.
func (c *connection) do(ctx context.Context, request ipc.Request) (*ipc.Response, error) {
	return ipc.Do(ctx, c.socket, request)
}

// requireArgs returns an error unless exactly n positional arguments
// were given.
func requireArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}
