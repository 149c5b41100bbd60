package storage

import (
	"database/sql"
)

type frameData struct {
	DeviceID       string
	Timestamp      int64
	RSSI           int32
	SNR            int32
	PHY            string
	FrameType      string
	Payload        []byte
	QualityMetric1 sql.NullFloat64
	QualityMetric2 sql.NullInt32
	QualityMetric3 sql.NullInt32
}
