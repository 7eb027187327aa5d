// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/infractura/ssh-desktop/lib/codec"
)

// Analysis summarises the journal over a period.
type Analysis struct {
	Start time.Time `json:"start" cbor:"start"`
	End   time.Time `json:"end" cbor:"end"`

	TotalSessions    uint64        `json:"total_sessions" cbor:"total_sessions"`
	EndedSessions    uint64        `json:"ended_sessions" cbor:"ended_sessions"`
	AverageDuration  time.Duration `json:"average_duration_ns" cbor:"average_duration_ns"`
	MaxConcurrent    uint64        `json:"max_concurrent" cbor:"max_concurrent"`
	IdleTerminations uint64        `json:"idle_terminations" cbor:"idle_terminations"`
	FailedSessions   uint64        `json:"failed_sessions" cbor:"failed_sessions"`

	Users  []UserStats `json:"users" cbor:"users"`
	Hourly [24]uint64  `json:"hourly" cbor:"hourly"`
}

// UserStats is the per-user part of an Analysis.
type UserStats struct {
	User             string        `json:"user" cbor:"user"`
	Sessions         uint64        `json:"sessions" cbor:"sessions"`
	TotalDuration    time.Duration `json:"total_duration_ns" cbor:"total_duration_ns"`
	AverageDuration  time.Duration `json:"average_duration_ns" cbor:"average_duration_ns"`
	IdleTerminations uint64        `json:"idle_terminations" cbor:"idle_terminations"`
	FailedSessions   uint64        `json:"failed_sessions" cbor:"failed_sessions"`
}

// Analyze reads every history and metrics stream in dir, archives
// included, and summarises entries with timestamps in [start, end].
//
// Sessions are counted when their created event falls in the period.
// Durations come from sessions whose created and ending events both
// fall in the period. MaxConcurrent is the larger of the peak replayed
// from events and the highest active count in the metrics snapshots.
func Analyze(dir string, start, end time.Time) (Analysis, error) {
	analysis := Analysis{Start: start.UTC(), End: end.UTC()}
	if end.Before(start) {
		return analysis, fmt.Errorf("analysis period ends (%s) before it starts (%s)", end, start)
	}

	inPeriod := func(t time.Time) bool { return !t.Before(start) && !t.After(end) }

	events, err := ReadEvents(dir)
	if err != nil {
		return analysis, err
	}

	type opened struct {
		user  string
		since time.Time
	}
	live := make(map[string]opened)
	users := make(map[string]*UserStats)
	userFor := func(name string) *UserStats {
		stats, ok := users[name]
		if !ok {
			stats = &UserStats{User: name}
			users[name] = stats
		}
		return stats
	}

	userDurations := make(map[string]uint64)
	var concurrent, durationCount uint64
	var durationTotal time.Duration
	for _, event := range events {
		if !inPeriod(event.Timestamp) {
			continue
		}
		switch {
		case event.Type == EventCreated:
			live[event.SessionID] = opened{user: event.User, since: event.Timestamp}
			analysis.TotalSessions++
			analysis.Hourly[event.Timestamp.UTC().Hour()]++
			userFor(event.User).Sessions++
			concurrent++
			analysis.MaxConcurrent = max(analysis.MaxConcurrent, concurrent)

		case event.Type.Ends():
			analysis.EndedSessions++
			stats := userFor(event.User)
			switch event.Type {
			case EventIdleTimeout:
				analysis.IdleTerminations++
				stats.IdleTerminations++
			case EventFailed:
				analysis.FailedSessions++
				stats.FailedSessions++
			}

			began, ok := live[event.SessionID]
			if !ok {
				continue
			}
			delete(live, event.SessionID)
			concurrent--
			duration := event.Timestamp.Sub(began.since)
			durationTotal += duration
			durationCount++
			stats.TotalDuration += duration
			userDurations[event.User]++
		}
	}
	if durationCount > 0 {
		analysis.AverageDuration = durationTotal / time.Duration(durationCount)
	}

	records, err := ReadMetrics(dir)
	if err != nil {
		return analysis, err
	}
	for _, record := range records {
		if inPeriod(record.Timestamp) && record.Metrics.ActiveSessions > 0 {
			analysis.MaxConcurrent = max(analysis.MaxConcurrent, uint64(record.Metrics.ActiveSessions))
		}
	}

	analysis.Users = make([]UserStats, 0, len(users))
	for _, stats := range users {
		if count := userDurations[stats.User]; count > 0 {
			stats.AverageDuration = stats.TotalDuration / time.Duration(count)
		}
		analysis.Users = append(analysis.Users, *stats)
	}
	sort.Slice(analysis.Users, func(a, b int) bool {
		return analysis.Users[a].User < analysis.Users[b].User
	})
	return analysis, nil
}

// ReadEvents returns every lifecycle event in dir ordered by timestamp.
func ReadEvents(dir string) ([]Event, error) {
	var events []Event
	err := readStream(dir, HistoryFile, func(decoder *codec.Decoder) error {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Timestamp.Before(events[b].Timestamp)
	})
	return events, err
}

// ReadMetrics returns every metrics record in dir ordered by timestamp.
func ReadMetrics(dir string) ([]MetricsRecord, error) {
	var records []MetricsRecord
	err := readStream(dir, MetricsFile, func(decoder *codec.Decoder) error {
		var record MetricsRecord
		if err := decoder.Decode(&record); err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Timestamp.Before(records[b].Timestamp)
	})
	return records, err
}

// readStream feeds the archives of name, oldest first, then the live
// file, to decodeOne until each is exhausted. A truncated final item,
// as left by a crash mid-write, ends that file without error.
func readStream(dir, name string, decodeOne func(*codec.Decoder) error) error {
	archives, err := listArchives(dir, name)
	if err != nil {
		return err
	}
	paths := make([]string, 0, len(archives)+1)
	for _, archive := range archives {
		paths = append(paths, archive.path)
	}
	paths = append(paths, filepath.Join(dir, name))

	for _, path := range paths {
		reader, err := openArchive(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		decoder := codec.NewDecoder(reader)
		for {
			err := decodeOne(decoder)
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			reader.Close()
			return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		reader.Close()
	}
	return nil
}
