// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session launches and supervises display sessions.
//
// A [Supervisor] turns a [Request] into a running [Session]: it checks
// the per-user cap, allocates a display number from the pool, derives
// and probes the forwarding port, spawns the process, and waits for it
// to accept connections. Each session then has one goroutine that owns
// its process and waits for the first of three triggers:
//
//   - an explicit [Supervisor.Stop] (outcome killed)
//   - the process exiting on its own (normal for status zero, failed
//     otherwise)
//   - the hard idle deadline passing (outcome idle_timeout)
//
// Whichever comes first runs the single teardown path: SIGTERM to the
// process group, SIGKILL after the grace period, release of the
// display, one metrics update and one journal event. Teardown runs at
// most once per session.
//
// All timing goes through lib/clock, so tests drive startup deadlines,
// termination grace and idle transitions with a fake clock.
package session
