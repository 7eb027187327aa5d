// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads desktopd configuration.
//
// Configuration comes from exactly one file, named by the --config flag
// or the SSH_DESKTOP_CONFIG environment variable. The file is decoded
// over [Default], so it only needs the fields it changes. Files with a
// .json or .jsonc extension are parsed as JSON with comments; anything
// else is YAML.
//
// Durations are Go duration strings ("90s", "1h"). An idle_timeout of
// "0s" disables idle handling entirely.
package config
