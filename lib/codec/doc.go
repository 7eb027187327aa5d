// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the single CBOR configuration shared by the
// control socket (lib/ipc) and the history journal (lib/history).
//
// JSON is reserved for operator-facing output (the metrics document,
// `desktop status --json`). Everything a desktopd process writes for its
// own consumption, or exchanges with the local CLI, is CBOR encoded with
// Core Deterministic Encoding (RFC 8949 §4.2), so the same value always
// produces the same bytes.
//
//	data, err := codec.Marshal(event)
//	encoder := codec.NewEncoder(conn)
package codec
