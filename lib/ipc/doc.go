// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the desktopd control socket protocol.
//
// The socket is a Unix stream socket. Each connection carries exactly
// one CBOR-encoded [Request] from the client and one [Response] back,
// then closes. Every exchange has a 30 second deadline except
// start-session, which blocks until the session is ready, and
// wait-session, which blocks until it ends.
//
// Failed responses carry an [ErrorKind] next to the message, and
// [Response.Err] turns it back into an error that matches the
// lib/session sentinels with errors.Is, so callers on both sides of the
// socket test failures the same way.
package ipc
