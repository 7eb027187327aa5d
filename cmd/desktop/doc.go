// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Desktop is the command-line client for desktopd. It starts, inspects
// and stops sessions over the daemon's control socket, renders the
// status view, and analyzes the session journal.
package main
