// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/config"
	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to a YAML or JSONC configuration file (default: $"+config.EnvironmentVariable+", else built-in defaults)")
	flag.StringVar(&socketPath, "socket", "", "control socket path (overrides socket_path from the configuration)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("desktopd %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon, err := newDaemon(cfg, daemonOptions{clock: clock.Real(), logger: logger})
	if err != nil {
		return err
	}

	listener, err := listenSocket(cfg.SocketPath)
	if err != nil {
		daemon.close()
		return fmt.Errorf("listening on %s: %w", cfg.SocketPath, err)
	}
	defer os.Remove(cfg.SocketPath)
	logger.Info("desktopd listening",
		"socket", cfg.SocketPath,
		"display_min", cfg.DisplayMin,
		"display_max", cfg.DisplayMax,
		"base_port", cfg.BasePort,
		"history_dir", cfg.History.Dir,
		"version", version.Info(),
	)

	// Handle connections in the background.
	go ipc.Serve(ctx, listener, daemon, logger)
	go daemon.runMaintenance(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	logger.Info("shutting down")

	// Every session gets its SIGTERM grace and the post-SIGKILL wait.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.TerminationGrace.Duration+5*time.Second)
	defer cancel()
	if err := daemon.shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown incomplete", "error", err)
	}
	return nil
}

// loadConfig reads path, or $SSH_DESKTOP_CONFIG when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// listenSocket creates a unix socket listener, removing any stale socket file.
func listenSocket(socketPath string) (net.Listener, error) {
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, fmt.Errorf("creating socket directory %s: %w", socketDir, err)
	}

	// Remove stale socket file from a previous run.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	// sshd runs the forwarding glue as the logged-in user, so the
	// socket must be reachable by the session users' group.
	if err := os.Chmod(socketPath, 0660); err != nil {
		listener.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return listener, nil
}
