// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/infractura/ssh-desktop/lib/clock"
	"github.com/infractura/ssh-desktop/lib/codec"
	"github.com/infractura/ssh-desktop/lib/metrics"
)

const (
	// HistoryFile is the live lifecycle event stream.
	HistoryFile = "history.cbor"

	// MetricsFile is the live metrics snapshot stream.
	MetricsFile = "metrics.cbor"

	// stampLayout sorts lexically in time order.
	stampLayout = "20060102T150405.000Z"
)

// Options configures a Journal.
type Options struct {
	// MaxSize is the size in bytes above which Rotate archives a
	// stream. Zero disables size rotation.
	MaxSize int64

	// MaxAge is how long archives are kept. Zero keeps them forever.
	MaxAge time.Duration

	Compression Compression
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Journal appends events and metrics snapshots to a directory. Safe for
// concurrent use.
type Journal struct {
	dir     string
	options Options
	logger  *slog.Logger

	mu      sync.Mutex
	history *os.File
	metrics *os.File
	closed  bool
}

// Open creates dir if needed and opens both streams for append.
func Open(dir string, options Options) (*Journal, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	journal := &Journal{dir: dir, options: options, logger: options.Logger}
	var err error
	if journal.history, err = openStream(filepath.Join(dir, HistoryFile)); err != nil {
		return nil, err
	}
	if journal.metrics, err = openStream(filepath.Join(dir, MetricsFile)); err != nil {
		journal.history.Close()
		return nil, err
	}
	return journal, nil
}

func openStream(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return file, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

// Record appends one lifecycle event. A zero Timestamp is filled from
// the journal clock.
func (j *Journal) Record(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = j.options.Clock.Now()
	}
	event.Timestamp = event.Timestamp.UTC()
	return j.append(HistoryFile, event)
}

// RecordMetrics appends a metrics snapshot with the sessions live at
// the time.
func (j *Journal) RecordMetrics(snapshot metrics.Snapshot, sessions []SessionSummary) error {
	if sessions == nil {
		sessions = []SessionSummary{}
	}
	return j.append(MetricsFile, MetricsRecord{
		Timestamp: j.options.Clock.Now().UTC(),
		Metrics:   snapshot,
		Sessions:  sessions,
	})
}

// append encodes the item into one buffer so a single write carries it.
func (j *Journal) append(name string, item any) error {
	data, err := codec.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding %s entry: %w", name, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return errors.New("journal is closed")
	}
	file := j.history
	if name == MetricsFile {
		file = j.metrics
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("appending to %s: %w", name, err)
	}
	return nil
}

// Rotate archives every stream above MaxSize and prunes archives older
// than MaxAge.
func (j *Journal) Rotate() error {
	var errs []error
	for _, name := range []string{HistoryFile, MetricsFile} {
		if err := j.rotateStream(name); err != nil {
			errs = append(errs, err)
		}
	}
	if err := j.prune(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (j *Journal) rotateStream(name string) error {
	if j.options.MaxSize <= 0 {
		return nil
	}
	path := filepath.Join(j.dir, name)

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		j.mu.Unlock()
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if info.Size() <= j.options.MaxSize {
		j.mu.Unlock()
		return nil
	}

	rotated := j.archivePath(name)
	if err := os.Rename(path, rotated); err != nil {
		j.mu.Unlock()
		return fmt.Errorf("rotating %s: %w", name, err)
	}
	fresh, err := openStream(path)
	if err != nil {
		j.mu.Unlock()
		return err
	}
	previous := j.swapStream(name, fresh)
	j.mu.Unlock()
	previous.Close()

	j.logger.Info("rotated journal",
		"file", name,
		"size", humanize.IBytes(uint64(info.Size())),
		"archive", filepath.Base(rotated),
	)

	if j.options.Compression == CompressionNone {
		return nil
	}
	compressed := rotated + j.options.Compression.Extension()
	if err := compressFile(rotated, compressed, j.options.Compression); err != nil {
		// The uncompressed archive stays readable by Analyze.
		return fmt.Errorf("compressing %s: %w", filepath.Base(rotated), err)
	}
	return os.Remove(rotated)
}

func (j *Journal) swapStream(name string, fresh *os.File) *os.File {
	if name == MetricsFile {
		previous := j.metrics
		j.metrics = fresh
		return previous
	}
	previous := j.history
	j.history = fresh
	return previous
}

// archivePath picks an unused <name>.<stamp> path.
func (j *Journal) archivePath(name string) string {
	base := filepath.Join(j.dir, name+"."+j.options.Clock.Now().UTC().Format(stampLayout))
	candidate := base
	for suffix := 1; ; suffix++ {
		if !archiveExists(candidate) {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func archiveExists(path string) bool {
	for _, extension := range []string{"", ".zst", ".lz4"} {
		if _, err := os.Stat(path + extension); err == nil {
			return true
		}
	}
	return false
}

// prune removes archives whose stamp is older than MaxAge.
func (j *Journal) prune() error {
	if j.options.MaxAge <= 0 {
		return nil
	}
	cutoff := j.options.Clock.Now().Add(-j.options.MaxAge)

	var errs []error
	for _, name := range []string{HistoryFile, MetricsFile} {
		archives, err := listArchives(j.dir, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, archive := range archives {
			if !archive.stamp.Before(cutoff) {
				continue
			}
			if err := os.Remove(archive.path); err != nil {
				errs = append(errs, err)
				continue
			}
			j.logger.Info("removed expired journal archive", "archive", filepath.Base(archive.path))
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes both streams.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return errors.Join(j.history.Close(), j.metrics.Close())
}

type archive struct {
	path  string
	stamp time.Time
}

// listArchives returns the rotated files of stream name in time order.
// Files whose stamp cannot be parsed are skipped.
func listArchives(dir, name string) ([]archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var archives []archive
	prefix := name + "."
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		stamp := strings.TrimPrefix(entry.Name(), prefix)
		stamp = strings.TrimSuffix(strings.TrimSuffix(stamp, ".zst"), ".lz4")
		if index := strings.IndexByte(stamp, '-'); index >= 0 {
			stamp = stamp[:index]
		}
		parsed, err := time.Parse(stampLayout, stamp)
		if err != nil {
			continue
		}
		archives = append(archives, archive{path: filepath.Join(dir, entry.Name()), stamp: parsed})
	}
	sort.SliceStable(archives, func(a, b int) bool {
		if archives[a].stamp.Equal(archives[b].stamp) {
			return archives[a].path < archives[b].path
		}
		return archives[a].stamp.Before(archives[b].stamp)
	})
	return archives, nil
}
