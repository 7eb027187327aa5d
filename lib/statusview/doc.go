// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statusview renders desktopd status reports and history
// analyses for terminals.
//
// [RenderStatus] and [RenderAnalysis] write plain tables styled with
// lipgloss. Color is chosen per writer: pass Options.Color false (for
// --no-color or a non-terminal, see [ColorEnabled]) and the output is
// pure ASCII with no escape sequences.
//
// [WatchModel] is a bubbletea model that polls a fetch function and
// redraws the status view until the user quits.
package statusview
