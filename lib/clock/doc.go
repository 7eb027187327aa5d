// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the session supervisor and the
// history journal.
//
// Components hold a Clock field instead of calling time.Now, time.After
// or time.NewTicker directly. Production wiring passes Real(); tests pass
// Fake(start) and drive idle windows, termination grace periods and
// readiness deadlines with Advance:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	supervisor := session.NewSupervisor(session.Options{Clock: fake, ...})
//	// ... start a session ...
//	fake.WaitForTimers(1)          // the session goroutine armed its ticker
//	fake.Advance(15 * time.Minute) // the session becomes idle
//
// WaitForTimers closes the race between a goroutine arming a timer and
// the test moving time forward.
package clock
