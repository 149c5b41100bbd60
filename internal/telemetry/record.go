package telemetry

const (
	// OuterElement is the container element carrying the device identifier
	OuterElement = "sdl"
	// InnerElement is the element describing a single frame reception
	InnerElement = "sd"

	AttrDeviceID  = "deviceId"
	AttrTimestamp = "ts"
	AttrRSSI      = "rssi"
	AttrSNR       = "snr"
	AttrPHY       = "phy"
	AttrFrameType = "type"
)

// Record is a single radio frame reception reported by a device
type Record struct {
	DeviceID  string `json:"deviceID"`  // Identifier inherited from the enclosing outer element
	Timestamp int64  `json:"timestamp"` // Reception timestamp as reported by the device
	RSSI      int32  `json:"rssi"`      // Received signal strength in dBm
	SNR       int32  `json:"snr"`       // Signal-to-noise ratio in dB
	PHY       string `json:"phy"`       // Physical layer name (e.g., "LoRa", "mioty")
	FrameType string `json:"frameType"` // Frame direction or type (e.g., "uplink")
	Payload   []byte `json:"payload"`   // Raw frame payload, never nil

	// Reserved quality indicators, nil when absent
	QualityMetric1 *float64 `json:"qualityMetric1,omitempty"`
	QualityMetric2 *int32   `json:"qualityMetric2,omitempty"`
	QualityMetric3 *int32   `json:"qualityMetric3,omitempty"`
}

// NewRecord returns a record in its default state
func NewRecord() Record {
	return Record{Payload: []byte{}}
}
