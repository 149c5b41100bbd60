// Package columnar transposes frame records into Apache Arrow record batches.
package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

var (
	// ErrSchemaMismatch indicates that a batch does not agree with the frame schema
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNoRows is returned when a batch is requested for an empty record set
	ErrNoRows = errors.New("no rows to build")
)

// Column positions within the frame schema
const (
	ColDeviceID = iota
	ColTimestamp
	ColRSSI
	ColSNR
	ColPHY
	ColFrameType
	ColPayload
	ColQualityMetric1
	ColQualityMetric2
	ColQualityMetric3
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "device_id", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "ts", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "rssi", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "snr", Type: arrow.PrimitiveTypes.Int32, Nullable: false},
	{Name: "phy", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "frame_type", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "payload", Type: arrow.BinaryTypes.Binary, Nullable: false},
	{Name: "quality_metric_1", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "quality_metric_2", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
	{Name: "quality_metric_3", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
}, nil)

// Schema returns the fixed frame schema
func Schema() *arrow.Schema {
	return schema
}

// Build transposes records into a single record batch. Rows keep the input
// order. The caller owns the returned batch and must release it.
func Build(mem memory.Allocator, records []telemetry.Record) (arrow.Record, error) {
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	deviceID := array.NewStringBuilder(mem)
	defer deviceID.Release()
	ts := array.NewInt64Builder(mem)
	defer ts.Release()
	rssi := array.NewInt32Builder(mem)
	defer rssi.Release()
	snr := array.NewInt32Builder(mem)
	defer snr.Release()
	phy := array.NewStringBuilder(mem)
	defer phy.Release()
	frameType := array.NewStringBuilder(mem)
	defer frameType.Release()
	payload := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer payload.Release()
	qm1 := array.NewFloat64Builder(mem)
	defer qm1.Release()
	qm2 := array.NewInt32Builder(mem)
	defer qm2.Release()
	qm3 := array.NewInt32Builder(mem)
	defer qm3.Release()

	n := len(records)
	deviceID.Reserve(n)
	ts.Reserve(n)
	rssi.Reserve(n)
	snr.Reserve(n)
	phy.Reserve(n)
	frameType.Reserve(n)
	payload.Reserve(n)
	qm1.Reserve(n)
	qm2.Reserve(n)
	qm3.Reserve(n)

	for _, r := range records {
		deviceID.Append(r.DeviceID)
		ts.Append(r.Timestamp)
		rssi.Append(r.RSSI)
		snr.Append(r.SNR)
		phy.Append(r.PHY)
		frameType.Append(r.FrameType)
		payload.Append(r.Payload)
		appendFloat64(qm1, r.QualityMetric1)
		appendInt32(qm2, r.QualityMetric2)
		appendInt32(qm3, r.QualityMetric3)
	}

	cols := []arrow.Array{
		deviceID.NewArray(),
		ts.NewArray(),
		rssi.NewArray(),
		snr.NewArray(),
		phy.NewArray(),
		frameType.NewArray(),
		payload.NewArray(),
		qm1.NewArray(),
		qm2.NewArray(),
		qm3.NewArray(),
	}
	defer releaseAll(cols)

	return newRecord(schema, cols, int64(n))
}

// newRecord assembles a record from columns after checking them against the
// schema. The columns are retained by the returned record.
func newRecord(s *arrow.Schema, cols []arrow.Array, rows int64) (arrow.Record, error) {
	if err := validate(s, cols, rows); err != nil {
		return nil, err
	}
	return array.NewRecord(s, cols, rows), nil
}

func validate(s *arrow.Schema, cols []arrow.Array, rows int64) error {
	if len(cols) != s.NumFields() {
		return fmt.Errorf("%w: %d columns for %d fields", ErrSchemaMismatch, len(cols), s.NumFields())
	}

	for i, col := range cols {
		field := s.Field(i)
		if !arrow.TypeEqual(field.Type, col.DataType()) {
			return fmt.Errorf("%w: column '%s' has type %s, expected %s", ErrSchemaMismatch, field.Name, col.DataType(), field.Type)
		}
		if int64(col.Len()) != rows {
			return fmt.Errorf("%w: column '%s' has %d rows, expected %d", ErrSchemaMismatch, field.Name, col.Len(), rows)
		}
		if !field.Nullable && col.NullN() > 0 {
			return fmt.Errorf("%w: column '%s' is not nullable but has %d nulls", ErrSchemaMismatch, field.Name, col.NullN())
		}
	}

	return nil
}

// Validate checks that rec carries the frame schema
func Validate(rec arrow.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil batch", ErrSchemaMismatch)
	}
	if !rec.Schema().Equal(schema) {
		return fmt.Errorf("%w: got %s", ErrSchemaMismatch, rec.Schema())
	}
	return validate(schema, rec.Columns(), rec.NumRows())
}

func appendFloat64(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendInt32(b *array.Int32Builder, v *int32) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func releaseAll(cols []arrow.Array) {
	for _, col := range cols {
		if col != nil {
			col.Release()
		}
	}
}
