package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radio-ingest/internal/columnar"
	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

const scenario = `<?xml version="1.0" encoding="UTF-8"?>
<sdl deviceId="X">
  <sd ts="1" rssi="-10" snr="5" phy="A" type="up">ab</sd>
  <sd ts="2" rssi="-20" snr="6" phy="B" type="down"></sd>
</sdl>`

func TestPipeline_EndToEnd(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	res, err := New(WithAllocator(mem)).Run(context.Background(), strings.NewReader(scenario))
	require.NoError(t, err)
	defer res.Release()

	require.False(t, res.NoRecords())
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.PayloadBytes)
	assert.Equal(t, []string{"X"}, res.Devices)

	require.NotNil(t, res.Batch)
	require.Equal(t, int64(2), res.Batch.NumRows())

	rows, err := columnar.Rows(res.Batch)
	require.NoError(t, err)

	expected := []telemetry.Record{
		{DeviceID: "X", Timestamp: 1, RSSI: -10, SNR: 5, PHY: "A", FrameType: "up", Payload: []byte{0xab}},
		{DeviceID: "X", Timestamp: 2, RSSI: -20, SNR: 6, PHY: "B", FrameType: "down", Payload: []byte{}},
	}
	assert.Equal(t, expected, rows)

	for _, col := range []int{columnar.ColQualityMetric1, columnar.ColQualityMetric2, columnar.ColQualityMetric3} {
		assert.Equal(t, 2, res.Batch.Column(col).NullN())
	}
}

func TestPipeline_NoRecords(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty source", ""},
		{"outer only", `<sdl deviceId="X"></sdl>`},
		{"unrelated elements", `<log><entry/></log>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New().Run(context.Background(), strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.True(t, res.NoRecords())
			assert.Nil(t, res.Batch, "no batch is built without records")
			res.Release()
		})
	}
}

func TestPipeline_Failures(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected error
	}{
		{"mismatched close", `<sdl deviceId="X"><sd ts="1"></sd><sd ts="2"></sdl>`, ErrMalformedInput},
		{"truncated", `<sdl deviceId="X"><sd ts="1"></sd>`, ErrMalformedInput},
		{"odd payload", `<sdl deviceId="X"><sd ts="1">48656c6</sd></sdl>`, ErrInvalidEncoding},
		{"non hex payload", `<sdl deviceId="X"><sd ts="1">48z6</sd></sdl>`, ErrInvalidEncoding},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := New().Run(context.Background(), strings.NewReader(tc.input))
			assert.ErrorIs(t, err, tc.expected)
			assert.Nil(t, res)
		})
	}
}

func TestPipeline_FieldParseError(t *testing.T) {
	input := `<sdl deviceId="X"><sd ts="1"/><sd ts="abc"/></sdl>`

	res, err := New().Run(context.Background(), strings.NewReader(input))
	assert.Nil(t, res)

	var fieldErr *FieldParseError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "ts", fieldErr.Field)
	assert.Equal(t, "abc", fieldErr.Value)
}

func TestPipeline_IOFailure(t *testing.T) {
	boom := errors.New("device unplugged")
	src := iotest.DataErrReader(iotest.ErrReader(boom))

	res, err := New().Run(context.Background(), src)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New().Run(ctx, strings.NewReader(scenario))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_NestedScope(t *testing.T) {
	input := `<sdl deviceId="P"><sdl deviceId="C"><sd/></sdl><sd/></sdl>`

	res, err := New(WithScope(telemetry.ScopeNested)).Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	defer res.Release()

	ids := res.Batch.Column(columnar.ColDeviceID).(*array.String)
	assert.Equal(t, "C", ids.Value(0))
	assert.Equal(t, "P", ids.Value(1))
	assert.Equal(t, []string{"C", "P"}, res.Devices)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func gzipBytes(t *testing.T, p []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(p)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, p []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(p, nil)
}

func TestPipeline_RunFile(t *testing.T) {
	plain := []byte(scenario)

	testCases := []struct {
		name        string
		file        string
		data        []byte
		compression Compression
	}{
		{"plain", "log.xml", plain, CompressionAuto},
		{"plain explicit", "log.xml", plain, CompressionNone},
		{"gzip by extension", "log.xml.gz", gzipBytes(t, plain), CompressionAuto},
		{"gzip by magic", "log.bin", gzipBytes(t, plain), CompressionAuto},
		{"gzip explicit", "log", gzipBytes(t, plain), CompressionGzip},
		{"zstd by extension", "log.xml.zst", zstdBytes(t, plain), CompressionAuto},
		{"zstd by magic", "log.bin", zstdBytes(t, plain), CompressionAuto},
		{"zstd explicit", "log", zstdBytes(t, plain), CompressionZstd},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.file, tc.data)

			res, err := New().RunFile(context.Background(), path, tc.compression)
			require.NoError(t, err)
			defer res.Release()

			assert.Equal(t, 2, res.Rows)
		})
	}
}

func TestPipeline_RunFileMissing(t *testing.T) {
	res, err := New().RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.xml"), CompressionAuto)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPipeline_RunFileCorruptGzip(t *testing.T) {
	path := writeFile(t, "log.xml.gz", []byte("definitely not gzip"))

	res, err := New().RunFile(context.Background(), path, CompressionAuto)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestParseCompression(t *testing.T) {
	for in, expected := range map[string]Compression{
		"":     CompressionAuto,
		"auto": CompressionAuto,
		"none": CompressionNone,
		"GZIP": CompressionGzip,
		"zstd": CompressionZstd,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, expected, got, in)
	}

	_, err := ParseCompression("lz4")
	assert.Error(t, err)
}
