// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by the package tests.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-deadline
// pattern so tests never hang on a channel that is never fed. They are
// the only place the tests use real wall-clock timeouts; everything
// the code under test times goes through lib/clock.
//
// [SocketDir] returns a short directory under /tmp for control sockets,
// since sun_path is limited to 108 bytes and t.TempDir() paths can
// exceed it. [UniqueID] produces distinct user names and ids for tests
// that share a supervisor.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
