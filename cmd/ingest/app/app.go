package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-ingest/internal/ingest"
	"github.com/roman-kulish/radio-ingest/internal/storage"
)

const catalogFile = "catalog.sqlite"

// Options are the per-invocation settings taken from the command line
type Options struct {
	InputPath string
	Table     string // Optional "namespace.table" override of the configured table
	DryRun    bool   // Parse only, nothing is written to the catalog
}

// Run parses the telemetry log at opts.InputPath and appends the resulting
// batch to the configured catalog table
func Run(ctx context.Context, config *Config, opts Options, logger *slog.Logger) (err error) {
	if opts.InputPath == "" {
		return errors.New("input path is required")
	}

	ident, err := config.Catalog.Ident()
	if opts.Table != "" {
		ident, err = storage.ParseTableIdent(opts.Table)
	}
	if err != nil {
		return fmt.Errorf("resolving target table: %w", err)
	}

	compression, err := config.Input.compression()
	if err != nil {
		return err
	}
	scope, err := config.Input.scope()
	if err != nil {
		return err
	}

	logger = logger.With(slog.String("input", opts.InputPath))

	pipeline := ingest.New(ingest.WithScope(scope), ingest.WithLogger(logger))
	res, err := pipeline.RunFile(ctx, opts.InputPath, compression)
	if err != nil {
		return fmt.Errorf("failed to ingest '%s': %w", opts.InputPath, err)
	}
	defer res.Release()

	if res.NoRecords() {
		logger.Info("no records found")
		return nil
	}

	summary := []any{
		slog.String("rows", humanize.Comma(int64(res.Rows))),
		slog.String("payload", humanize.Bytes(uint64(res.PayloadBytes))),
		slog.Int("devices", len(res.Devices)),
	}

	if opts.DryRun {
		logger.Info("dry run, batch not committed", summary...)
		return nil
	}

	catalog, err := createCatalog(&config.Catalog)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	defer func() {
		if cErr := catalog.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing catalog: %w", cErr)
		}
	}()

	if err = ensureTable(ctx, catalog, ident); err != nil {
		return err
	}

	snapshot, err := catalog.AppendBatch(ctx, ident, res.Batch)
	if err != nil {
		return fmt.Errorf("failed to append batch to '%s': %w", ident, err)
	}

	logger.Info("batch committed", append(summary,
		slog.String("table", ident.String()),
		slog.String("snapshot", snapshot.ID.String()),
		slog.Int64("sequence", snapshot.Sequence),
	)...)

	return nil
}

func ensureTable(ctx context.Context, catalog storage.Catalog, ident storage.TableIdent) error {
	if err := catalog.CreateNamespace(ctx, ident.Namespace); err != nil {
		return fmt.Errorf("creating namespace: %w", err)
	}

	exists, err := catalog.TableExists(ctx, ident)
	if err != nil {
		return fmt.Errorf("checking table: %w", err)
	}
	if exists {
		return nil
	}

	if _, err = catalog.CreateTable(ctx, ident); err != nil && !errors.Is(err, storage.ErrTableExists) {
		return fmt.Errorf("creating table: %w", err)
	}
	return nil
}

func createCatalog(config *CatalogConfig) (*storage.SqliteCatalog, error) {
	dir := config.Warehouse
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("warehouse directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking warehouse directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid warehouse directory '%s'", dir)
	}

	return storage.NewSqliteCatalog(filepath.Join(dir, catalogFile), storage.WithMaxBatchSize(config.MaxBatchSize)), nil
}
