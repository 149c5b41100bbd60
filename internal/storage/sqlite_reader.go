package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

// FrameReader provides an iterator-based interface for reading frame records
// back from a table
type FrameReader interface {
	// Table returns metadata about the table this reader is accessing.
	Table() *Table

	// Next advances the iterator and returns true if there is another record
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current record in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *telemetry.Record

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a SqliteFrameReader with specific filtering criteria
type ReaderOption func(*SqliteFrameReader)

// WithDevice restricts the reader to records of a single device
func WithDevice(deviceID string) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.deviceID = &deviceID
	}
}

// WithStartTime excludes records with timestamps before ts
func WithStartTime(ts int64) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &ts
	}
}

// WithEndTime excludes records with timestamps after ts
func WithEndTime(ts int64) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.endTime = &ts
	}
}

// WithTimeRange sets both start and end timestamp filters
func WithTimeRange(start, end int64) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &start
		r.endTime = &end
	}
}

// WithSnapshot restricts the reader to records appended by a single snapshot
func WithSnapshot(id uuid.UUID) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.snapshotID = &id
	}
}

// SqliteFrameReader implements FrameReader for the Sqlite backend
type SqliteFrameReader struct {
	db    *sql.DB
	table *Table

	deviceID   *string    // Optional device filter
	startTime  *int64     // Optional start of time range filter
	endTime    *int64     // Optional end of time range filter
	snapshotID *uuid.UUID // Optional snapshot filter

	current *telemetry.Record
	rows    *sql.Rows
	err     error
}

var _ FrameReader = (*SqliteFrameReader)(nil)

func newSqliteFrameReader(ctx context.Context, db *sql.DB, table *Table, opts ...ReaderOption) (*SqliteFrameReader, error) {
	r := &SqliteFrameReader{
		db:    db,
		table: table,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteFrameReader) init(ctx context.Context) (err error) {
	if r.startTime != nil && r.endTime != nil && *r.startTime > *r.endTime {
		return fmt.Errorf("start time %d is after end time %d", *r.startTime, *r.endTime)
	}

	var sb strings.Builder
	sb.WriteString(selectFramesSQL)
	args := []any{r.table.ID}

	if r.deviceID != nil {
		sb.WriteString("\n  AND f.device_id = ?")
		args = append(args, *r.deviceID)
	}
	if r.startTime != nil {
		sb.WriteString("\n  AND f.ts >= ?")
		args = append(args, *r.startTime)
	}
	if r.endTime != nil {
		sb.WriteString("\n  AND f.ts <= ?")
		args = append(args, *r.endTime)
	}
	if r.snapshotID != nil {
		sb.WriteString("\n  AND f.snapshot_id = ?")
		args = append(args, *r.snapshotID)
	}
	sb.WriteString(orderFramesSQL)

	if r.rows, err = r.db.QueryContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("querying frames: %w", err)
	}
	return nil
}

func (r *SqliteFrameReader) Table() *Table {
	return r.table
}

func (r *SqliteFrameReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		r.current = nil
		return false
	}

	var f frameData
	err := r.rows.Scan(
		&f.DeviceID,
		&f.Timestamp,
		&f.RSSI,
		&f.SNR,
		&f.PHY,
		&f.FrameType,
		&f.Payload,
		&f.QualityMetric1,
		&f.QualityMetric2,
		&f.QualityMetric3,
	)
	if err != nil {
		r.err = fmt.Errorf("scanning frame: %w", err)
		return false
	}

	r.current = toRecord(&f)
	return true
}

func (r *SqliteFrameReader) Current() *telemetry.Record {
	return r.current
}

func (r *SqliteFrameReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteFrameReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = nil
		r.rows = nil
		return err
	}
	return nil
}
