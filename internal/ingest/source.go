package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the encoding of a source file
type Compression string

const (
	CompressionAuto Compression = "auto"
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ParseCompression converts a textual compression name into a Compression
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "":
		return CompressionAuto, nil
	case CompressionAuto, CompressionNone, CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression '%s'", s)
	}
}

// source closes both the decompressor and the file beneath it
type source struct {
	io.Reader
	closers []io.Closer
}

func (s *source) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenSource opens the file at path for reading, transparently decompressing
// it. With CompressionAuto the encoding is chosen by file extension and, if
// that is inconclusive, by the leading magic bytes.
func OpenSource(path string, c Compression) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening source: %w", ErrIOFailure, err)
	}

	br := bufio.NewReader(f)
	if c == CompressionAuto || c == "" {
		if c, err = detectCompression(path, br); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: detecting compression: %w", ErrIOFailure, err)
		}
	}

	switch c {
	case CompressionGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: opening gzip stream: %w", ErrIOFailure, err)
		}
		return &source{Reader: gz, closers: []io.Closer{gz, f}}, nil

	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: opening zstd stream: %w", ErrIOFailure, err)
		}
		rc := zr.IOReadCloser()
		return &source{Reader: rc, closers: []io.Closer{rc, f}}, nil

	case CompressionNone:
		return &source{Reader: br, closers: []io.Closer{f}}, nil

	default:
		_ = f.Close()
		return nil, fmt.Errorf("unknown compression '%s'", c)
	}
}

func detectCompression(path string, br *bufio.Reader) (Compression, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip, nil
	case ".zst", ".zstd":
		return CompressionZstd, nil
	}

	head, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip, nil
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd, nil
	default:
		return CompressionNone, nil
	}
}
