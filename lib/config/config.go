// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "SSH_DESKTOP_CONFIG"

// Config is the complete desktopd configuration.
type Config struct {
	// DisplayMin and DisplayMax bound the display numbers handed out,
	// inclusive.
	DisplayMin uint16 `yaml:"display_min" json:"display_min"`
	DisplayMax uint16 `yaml:"display_max" json:"display_max"`

	// BasePort is added to a display number to produce its forwarding
	// port.
	BasePort uint16 `yaml:"base_port" json:"base_port"`

	// ProbeAddress is the host the port probe binds on.
	ProbeAddress string `yaml:"probe_address" json:"probe_address"`

	// ProbeTimeout bounds a single port availability probe.
	ProbeTimeout Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// IdleTimeout moves a running session to Idle. Zero disables idle
	// handling.
	IdleTimeout Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// IdleHardTimeout terminates an idle session. Must exceed
	// IdleTimeout when idle handling is enabled.
	IdleHardTimeout Duration `yaml:"idle_hard_timeout" json:"idle_hard_timeout"`

	// IdleCheckInterval is how often each session evaluates its idle
	// deadlines.
	IdleCheckInterval Duration `yaml:"idle_check_interval" json:"idle_check_interval"`

	// TerminationGrace is how long a process group has to exit after
	// SIGTERM before it is killed.
	TerminationGrace Duration `yaml:"termination_grace" json:"termination_grace"`

	// StartupTimeout bounds the wait for a graphical session to accept
	// connections.
	StartupTimeout Duration `yaml:"startup_timeout" json:"startup_timeout"`

	// ReadinessPoll is the interval between readiness probes.
	ReadinessPoll Duration `yaml:"readiness_poll" json:"readiness_poll"`

	// WindowManager is started inside graphical sessions that do not
	// name one.
	WindowManager string `yaml:"window_manager" json:"window_manager"`

	// Shell runs shell sessions that do not carry a command.
	Shell string `yaml:"shell" json:"shell"`

	// XpraBinary is the display server executable.
	XpraBinary string `yaml:"xpra_binary" json:"xpra_binary"`

	// MaxSessionsPerUser caps live sessions per user. Zero means no cap.
	MaxSessionsPerUser int `yaml:"max_sessions_per_user" json:"max_sessions_per_user"`

	// RetainTerminated is how long finished sessions stay queryable.
	RetainTerminated Duration `yaml:"retain_terminated" json:"retain_terminated"`

	// SocketPath is the control socket desktopd listens on.
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	History HistoryConfig `yaml:"history" json:"history"`
}

// HistoryConfig configures the session journal.
type HistoryConfig struct {
	// Dir holds history.cbor, metrics.cbor and their rotated archives.
	// Empty disables the journal.
	Dir string `yaml:"dir" json:"dir"`

	// MaxSize is the byte size above which a journal file is rotated.
	MaxSize int64 `yaml:"max_size" json:"max_size"`

	// MaxAge is how long rotated archives are kept.
	MaxAge Duration `yaml:"max_age" json:"max_age"`

	// Compression is "zstd", "lz4" or "none".
	Compression string `yaml:"compression" json:"compression"`

	// MetricsInterval is how often a metrics snapshot is appended.
	MetricsInterval Duration `yaml:"metrics_interval" json:"metrics_interval"`

	// RotateInterval is how often rotation runs.
	RotateInterval Duration `yaml:"rotate_interval" json:"rotate_interval"`
}

// Default returns the configuration a file is decoded over.
func Default() *Config {
	return &Config{
		DisplayMin:         100,
		DisplayMax:         599,
		BasePort:           14500,
		ProbeAddress:       "127.0.0.1",
		ProbeTimeout:       Duration{time.Second},
		IdleTimeout:        Duration{time.Hour},
		IdleHardTimeout:    Duration{2 * time.Hour},
		IdleCheckInterval:  Duration{time.Minute},
		TerminationGrace:   Duration{5 * time.Second},
		StartupTimeout:     Duration{30 * time.Second},
		ReadinessPoll:      Duration{250 * time.Millisecond},
		WindowManager:      "gnome-flashback",
		Shell:              "/bin/sh",
		XpraBinary:         "xpra",
		MaxSessionsPerUser: 5,
		RetainTerminated:   Duration{10 * time.Minute},
		SocketPath:         "/run/ssh-desktop/desktopd.sock",
		History: HistoryConfig{
			MaxSize:         10 * 1024 * 1024,
			MaxAge:          Duration{30 * 24 * time.Hour},
			Compression:     "zstd",
			MetricsInterval: Duration{time.Minute},
			RotateInterval:  Duration{time.Hour},
		},
	}
}

// Load reads the file named by SSH_DESKTOP_CONFIG. An unset variable
// yields [Default].
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile decodes path over [Default] and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every inconsistent field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DisplayMin > c.DisplayMax {
		errs = append(errs, fmt.Errorf("display_min %d exceeds display_max %d", c.DisplayMin, c.DisplayMax))
	}
	if int(c.BasePort)+int(c.DisplayMax) > 65535 {
		errs = append(errs, fmt.Errorf("base_port %d + display_max %d exceeds 65535", c.BasePort, c.DisplayMax))
	}
	if c.ProbeAddress == "" {
		errs = append(errs, errors.New("probe_address is required"))
	}
	if c.IdleTimeout.Duration < 0 {
		errs = append(errs, errors.New("idle_timeout must not be negative"))
	}
	if c.IdleTimeout.Duration > 0 {
		if c.IdleHardTimeout.Duration <= c.IdleTimeout.Duration {
			errs = append(errs, fmt.Errorf("idle_hard_timeout %v must exceed idle_timeout %v",
				c.IdleHardTimeout.Duration, c.IdleTimeout.Duration))
		}
		if c.IdleCheckInterval.Duration <= 0 {
			errs = append(errs, errors.New("idle_check_interval must be positive"))
		}
	}
	if c.TerminationGrace.Duration <= 0 {
		errs = append(errs, errors.New("termination_grace must be positive"))
	}
	if c.StartupTimeout.Duration <= 0 {
		errs = append(errs, errors.New("startup_timeout must be positive"))
	}
	if c.ReadinessPoll.Duration <= 0 {
		errs = append(errs, errors.New("readiness_poll must be positive"))
	}
	if c.XpraBinary == "" {
		errs = append(errs, errors.New("xpra_binary is required"))
	}
	if c.Shell == "" {
		errs = append(errs, errors.New("shell is required"))
	}
	if c.MaxSessionsPerUser < 0 {
		errs = append(errs, errors.New("max_sessions_per_user must not be negative"))
	}
	if c.SocketPath == "" {
		errs = append(errs, errors.New("socket_path is required"))
	}

	switch c.History.Compression {
	case "zstd", "lz4", "none":
	default:
		errs = append(errs, fmt.Errorf("history.compression %q must be zstd, lz4 or none", c.History.Compression))
	}
	if c.History.Dir != "" {
		if c.History.MaxSize <= 0 {
			errs = append(errs, errors.New("history.max_size must be positive"))
		}
		if c.History.MetricsInterval.Duration <= 0 {
			errs = append(errs, errors.New("history.metrics_interval must be positive"))
		}
		if c.History.RotateInterval.Duration <= 0 {
			errs = append(errs, errors.New("history.rotate_interval must be positive"))
		}
	}

	return errors.Join(errs...)
}
