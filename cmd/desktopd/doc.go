// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Desktopd is the ssh-desktop session daemon. It hands out X display
// numbers and forwarding ports, spawns one xpra server or shell per
// session, supervises each child until it exits, stops idle sessions,
// and journals session history. Clients (the desktop CLI, the SSH
// forwarding glue) talk to it over a unix socket at
// /run/ssh-desktop/desktopd.sock using the protocol in lib/ipc.
package main
