// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the desktop CLI command tree. Every command
// except "analyze --dir" talks to desktopd over its control socket.
package commands
