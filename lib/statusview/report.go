// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statusview

import (
	"time"

	"github.com/infractura/ssh-desktop/lib/ipc"
	"github.com/infractura/ssh-desktop/lib/metrics"
	"github.com/infractura/ssh-desktop/lib/session"
)

// Report is everything the status view shows: the daemon's
// configuration, its sessions, and a metrics snapshot.
type Report struct {
	Daemon   ipc.DaemonInfo   `json:"daemon"`
	Sessions []session.Status `json:"sessions"`
	Metrics  metrics.Snapshot `json:"metrics"`

	// FetchedAt is when the report was taken. Relative times in the
	// rendered view are measured from it.
	FetchedAt time.Time `json:"fetched_at"`
}

// FromResponse builds a Report from a status response. Missing
// sections are left zero.
func FromResponse(response *ipc.Response, fetchedAt time.Time) Report {
	report := Report{Sessions: response.Sessions, FetchedAt: fetchedAt}
	if response.Daemon != nil {
		report.Daemon = *response.Daemon
	}
	if response.Metrics != nil {
		report.Metrics = *response.Metrics
	}
	return report
}

// LiveSessions counts sessions that have not terminated.
func (r Report) LiveSessions() int {
	count := 0
	for _, status := range r.Sessions {
		if status.State.Live() {
			count++
		}
	}
	return count
}
