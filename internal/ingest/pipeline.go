// Package ingest runs the telemetry log pipeline: the markup source is read,
// assembled into frame records and transposed into a columnar batch.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/roman-kulish/radio-ingest/internal/columnar"
	"github.com/roman-kulish/radio-ingest/internal/markup"
	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithAllocator sets the memory allocator used for building batches
func WithAllocator(mem memory.Allocator) Option {
	return func(p *Pipeline) {
		p.mem = mem
	}
}

// WithScope sets how device identifiers of outer elements are scoped
func WithScope(scope telemetry.Scope) Option {
	return func(p *Pipeline) {
		p.scope = scope
	}
}

// Result is the outcome of a successful pipeline run
type Result struct {
	Batch        arrow.Record // Nil when the source holds no records
	Rows         int          // Number of records
	PayloadBytes int          // Total decoded payload size
	Devices      []string     // Distinct device identifiers, sorted
}

// NoRecords reports whether the source was well-formed but held no records
func (r *Result) NoRecords() bool {
	return r.Rows == 0
}

// Release frees the batch memory. It is safe to call Release multiple times.
func (r *Result) Release() {
	if r.Batch != nil {
		r.Batch.Release()
		r.Batch = nil
	}
}

// Pipeline converts a markup telemetry log into a columnar batch. A Pipeline
// holds no parse state and may be shared; every run gets its own assembler.
type Pipeline struct {
	mem    memory.Allocator
	scope  telemetry.Scope
	logger *slog.Logger
}

// New creates a new Pipeline with a discard logger and the default allocator
func New(options ...Option) *Pipeline {
	p := Pipeline{
		mem:    memory.DefaultAllocator,
		scope:  telemetry.ScopeLastSeen,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// RunFile opens the file at path and runs the pipeline over it
func (p *Pipeline) RunFile(ctx context.Context, path string, c Compression) (res *Result, err error) {
	src, err := OpenSource(path, c)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cErr := src.Close(); cErr != nil && err == nil {
			if res != nil {
				res.Release()
			}
			res, err = nil, fmt.Errorf("%w: closing source: %w", ErrIOFailure, cErr)
		}
	}()

	return p.Run(ctx, src)
}

// Run reads the whole source and builds a single batch. Any failure discards
// everything parsed so far.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	asm := telemetry.NewAssembler(markup.NewReader(r),
		telemetry.WithScope(p.scope),
		telemetry.WithLogger(p.logger))

	var records []telemetry.Record
	var payloadBytes int
	devices := make(map[string]struct{})

	for asm.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec := asm.Current()
		records = append(records, rec)
		payloadBytes += len(rec.Payload)
		devices[rec.DeviceID] = struct{}{}
	}
	if err := asm.Error(); err != nil {
		p.logger.Debug("parse aborted", slog.Int("discarded", len(records)))
		return nil, fmt.Errorf("parsing source: %w", err)
	}

	res := &Result{
		Rows:         len(records),
		PayloadBytes: payloadBytes,
	}
	if res.NoRecords() {
		return res, nil
	}

	for id := range devices {
		res.Devices = append(res.Devices, id)
	}
	slices.Sort(res.Devices)

	batch, err := columnar.Build(p.mem, records)
	if err != nil {
		return nil, fmt.Errorf("building batch: %w", err)
	}
	res.Batch = batch

	p.logger.Debug("batch built",
		slog.Group("stats",
			slog.Int("rows", res.Rows),
			slog.Int("payloadBytes", res.PayloadBytes),
			slog.Int("devices", len(res.Devices)),
		))

	return res, nil
}
