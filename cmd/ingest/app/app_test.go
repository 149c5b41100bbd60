package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/radio-ingest/internal/ingest"
	"github.com/roman-kulish/radio-ingest/internal/storage"
)

const telemetryLog = `<sdl deviceId="X">
  <sd ts="1" rssi="-10" snr="5" phy="A" type="up">ab</sd>
  <sd ts="2" rssi="-20" snr="6" phy="B" type="down"></sd>
</sdl>
<sdl deviceId="Y">
  <sd ts="3" rssi="-30" snr="7" phy="C" type="up">cafe</sd>
</sdl>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *Config {
	t.Helper()

	config := NewConfig()
	config.Catalog.Warehouse = t.TempDir()
	return config
}

func writeLog(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "log.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func snapshots(t *testing.T, config *Config, ident storage.TableIdent) []*storage.Snapshot {
	t.Helper()

	catalog := storage.NewSqliteCatalog(filepath.Join(config.Catalog.Warehouse, catalogFile))
	defer func() {
		assert.NoError(t, catalog.Close())
	}()

	snaps, err := catalog.Snapshots(context.Background(), ident)
	require.NoError(t, err)
	return snaps
}

func TestRun_Commits(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t)
	opts := Options{InputPath: writeLog(t, telemetryLog)}

	require.NoError(t, Run(ctx, config, opts, discardLogger()))
	require.NoError(t, Run(ctx, config, opts, discardLogger()), "appending to an existing table")

	snaps := snapshots(t, config, storage.TableIdent{Namespace: "default", Name: "sd_test"})
	require.Len(t, snaps, 2)
	for i, s := range snaps {
		assert.Equal(t, int64(i+1), s.Sequence)
		assert.Equal(t, int64(3), s.Rows)
	}
}

func TestRun_TableOverride(t *testing.T) {
	config := testConfig(t)
	opts := Options{InputPath: writeLog(t, telemetryLog), Table: "lab.frames"}

	require.NoError(t, Run(context.Background(), config, opts, discardLogger()))
	assert.Len(t, snapshots(t, config, storage.TableIdent{Namespace: "lab", Name: "frames"}), 1)

	opts.Table = "frames"
	assert.ErrorIs(t, Run(context.Background(), config, opts, discardLogger()), storage.ErrInvalidIdent)
}

func TestRun_NoRecords(t *testing.T) {
	config := testConfig(t)
	opts := Options{InputPath: writeLog(t, `<sdl deviceId="X"></sdl>`)}

	require.NoError(t, Run(context.Background(), config, opts, discardLogger()))
	assert.NoFileExists(t, filepath.Join(config.Catalog.Warehouse, catalogFile))
}

func TestRun_DryRun(t *testing.T) {
	config := testConfig(t)
	config.Catalog.Warehouse = filepath.Join(config.Catalog.Warehouse, "missing")
	opts := Options{InputPath: writeLog(t, telemetryLog), DryRun: true}

	require.NoError(t, Run(context.Background(), config, opts, discardLogger()))
	assert.NoDirExists(t, config.Catalog.Warehouse)
}

func TestRun_Failures(t *testing.T) {
	t.Run("malformed input", func(t *testing.T) {
		config := testConfig(t)
		opts := Options{InputPath: writeLog(t, `<sdl deviceId="X"><sd ts="1">`)}

		err := Run(context.Background(), config, opts, discardLogger())
		assert.ErrorIs(t, err, ingest.ErrMalformedInput)
		assert.NoFileExists(t, filepath.Join(config.Catalog.Warehouse, catalogFile), "nothing is written on failure")
	})

	t.Run("missing warehouse", func(t *testing.T) {
		config := testConfig(t)
		config.Catalog.Warehouse = filepath.Join(config.Catalog.Warehouse, "missing")
		opts := Options{InputPath: writeLog(t, telemetryLog)}

		assert.ErrorIs(t, Run(context.Background(), config, opts, discardLogger()), os.ErrNotExist)
	})

	t.Run("missing input", func(t *testing.T) {
		config := testConfig(t)
		opts := Options{InputPath: filepath.Join(t.TempDir(), "missing.xml")}

		assert.ErrorIs(t, Run(context.Background(), config, opts, discardLogger()), ingest.ErrIOFailure)
	})

	t.Run("no input", func(t *testing.T) {
		assert.Error(t, Run(context.Background(), testConfig(t), Options{}, discardLogger()))
	})
}
