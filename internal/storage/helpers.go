package storage

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/roman-kulish/radio-ingest/internal/columnar"
	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError rolls back a transaction unless it was already committed
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// appendFrameValues appends the insert arguments of batch row i to values
func appendFrameValues(values []any, tableID int64, snapshotID uuid.UUID, cols *columnar.Columns, i int) []any {
	var qm1 sql.NullFloat64
	if cols.QualityMetric1.IsValid(i) {
		qm1.Float64 = cols.QualityMetric1.Value(i)
		qm1.Valid = true
	}

	var qm2 sql.NullInt32
	if cols.QualityMetric2.IsValid(i) {
		qm2.Int32 = cols.QualityMetric2.Value(i)
		qm2.Valid = true
	}

	var qm3 sql.NullInt32
	if cols.QualityMetric3.IsValid(i) {
		qm3.Int32 = cols.QualityMetric3.Value(i)
		qm3.Valid = true
	}

	payload := cols.Payload.Value(i)
	if payload == nil {
		payload = []byte{} // zero-length blob, not NULL
	}

	return append(values,
		tableID,
		snapshotID,
		i,
		cols.DeviceID.Value(i),
		cols.Timestamp.Value(i),
		cols.RSSI.Value(i),
		cols.SNR.Value(i),
		cols.PHY.Value(i),
		cols.FrameType.Value(i),
		payload,
		qm1,
		qm2,
		qm3,
	)
}

func toRecord(f *frameData) *telemetry.Record {
	r := telemetry.Record{
		DeviceID:  f.DeviceID,
		Timestamp: f.Timestamp,
		RSSI:      f.RSSI,
		SNR:       f.SNR,
		PHY:       f.PHY,
		FrameType: f.FrameType,
		Payload:   f.Payload,
	}
	if r.Payload == nil {
		r.Payload = []byte{}
	}

	if f.QualityMetric1.Valid {
		r.QualityMetric1 = &f.QualityMetric1.Float64
	}
	if f.QualityMetric2.Valid {
		r.QualityMetric2 = &f.QualityMetric2.Int32
	}
	if f.QualityMetric3.Valid {
		r.QualityMetric3 = &f.QualityMetric3.Int32
	}

	return &r
}
