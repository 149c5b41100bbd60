package columnar

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

// Columns gives typed access to the columns of a frame batch
type Columns struct {
	DeviceID       *array.String
	Timestamp      *array.Int64
	RSSI           *array.Int32
	SNR            *array.Int32
	PHY            *array.String
	FrameType      *array.String
	Payload        *array.Binary
	QualityMetric1 *array.Float64
	QualityMetric2 *array.Int32
	QualityMetric3 *array.Int32
}

// ColumnsOf validates rec against the frame schema and returns its typed columns.
// The columns are owned by rec.
func ColumnsOf(rec arrow.Record) (*Columns, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}

	return &Columns{
		DeviceID:       rec.Column(ColDeviceID).(*array.String),
		Timestamp:      rec.Column(ColTimestamp).(*array.Int64),
		RSSI:           rec.Column(ColRSSI).(*array.Int32),
		SNR:            rec.Column(ColSNR).(*array.Int32),
		PHY:            rec.Column(ColPHY).(*array.String),
		FrameType:      rec.Column(ColFrameType).(*array.String),
		Payload:        rec.Column(ColPayload).(*array.Binary),
		QualityMetric1: rec.Column(ColQualityMetric1).(*array.Float64),
		QualityMetric2: rec.Column(ColQualityMetric2).(*array.Int32),
		QualityMetric3: rec.Column(ColQualityMetric3).(*array.Int32),
	}, nil
}

// Record returns row i as a telemetry record. Values are copied out of the
// batch buffers.
func (c *Columns) Record(i int) telemetry.Record {
	r := telemetry.Record{
		DeviceID:  strings.Clone(c.DeviceID.Value(i)),
		Timestamp: c.Timestamp.Value(i),
		RSSI:      c.RSSI.Value(i),
		SNR:       c.SNR.Value(i),
		PHY:       strings.Clone(c.PHY.Value(i)),
		FrameType: strings.Clone(c.FrameType.Value(i)),
		Payload:   bytes.Clone(c.Payload.Value(i)),
	}
	if r.Payload == nil {
		r.Payload = []byte{}
	}

	if c.QualityMetric1.IsValid(i) {
		v := c.QualityMetric1.Value(i)
		r.QualityMetric1 = &v
	}
	if c.QualityMetric2.IsValid(i) {
		v := c.QualityMetric2.Value(i)
		r.QualityMetric2 = &v
	}
	if c.QualityMetric3.IsValid(i) {
		v := c.QualityMetric3.Value(i)
		r.QualityMetric3 = &v
	}

	return r
}

// Rows transposes a frame batch back into records
func Rows(rec arrow.Record) ([]telemetry.Record, error) {
	cols, err := ColumnsOf(rec)
	if err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}

	records := make([]telemetry.Record, rec.NumRows())
	for i := range records {
		records[i] = cols.Record(i)
	}
	return records, nil
}
