// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package history journals session lifecycle events and periodic metrics
// snapshots to disk, rotates the journals, and analyses them.
//
// A journal directory holds two append-only CBOR streams:
//
//	history.cbor   one [Event] per lifecycle transition
//	metrics.cbor   one [MetricsRecord] per metrics interval
//
// [Journal.Rotate] moves a stream that has grown past MaxSize aside as
// <name>.<UTC stamp>, compresses it with zstd or lz4 into
// <name>.<stamp>.zst or .lz4, and removes archives older than MaxAge.
// [Analyze] reads the live streams and every archive back.
package history
