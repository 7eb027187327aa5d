// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how rotated journals are archived.
type Compression uint8

const (
	// CompressionNone keeps the rotated file as written.
	CompressionNone Compression = iota

	// CompressionZstd suits the repetitive CBOR keys well and is the
	// default.
	CompressionZstd

	// CompressionLZ4 trades ratio for speed.
	CompressionLZ4
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression accepts "none", "zstd" or "lz4".
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// Extension is the suffix appended to archives, empty for none.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	}
	return ""
}

// compressFile writes source compressed with c to destination and
// syncs it. The source is left in place.
func compressFile(source, destination string, c Compression) error {
	input, err := os.Open(source)
	if err != nil {
		return err
	}
	defer input.Close()

	output, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}

	var writer io.WriteCloser
	switch c {
	case CompressionZstd:
		writer, err = zstd.NewWriter(output)
		if err != nil {
			output.Close()
			os.Remove(destination)
			return fmt.Errorf("zstd writer: %w", err)
		}
	case CompressionLZ4:
		writer = lz4.NewWriter(output)
	default:
		output.Close()
		os.Remove(destination)
		return fmt.Errorf("compressFile called with %s", c)
	}

	if _, err := io.Copy(writer, input); err != nil {
		writer.Close()
		output.Close()
		os.Remove(destination)
		return fmt.Errorf("compressing %s: %w", source, err)
	}
	if err := writer.Close(); err != nil {
		output.Close()
		os.Remove(destination)
		return fmt.Errorf("finishing %s: %w", destination, err)
	}
	if err := output.Sync(); err != nil {
		output.Close()
		os.Remove(destination)
		return err
	}
	return output.Close()
}

// openArchive opens a journal file for reading, decompressing by its
// extension.
func openArchive(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, CompressionZstd.Extension()):
		decoder, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("zstd reader for %s: %w", path, err)
		}
		return &zstdReadCloser{decoder: decoder, file: file}, nil
	case strings.HasSuffix(path, CompressionLZ4.Extension()):
		return &lz4ReadCloser{Reader: lz4.NewReader(file), file: file}, nil
	}
	return file, nil
}

type zstdReadCloser struct {
	decoder *zstd.Decoder
	file    *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.decoder.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.decoder.Close()
	return z.file.Close()
}

type lz4ReadCloser struct {
	*lz4.Reader
	file *os.File
}

func (l *lz4ReadCloser) Close() error { return l.file.Close() }
