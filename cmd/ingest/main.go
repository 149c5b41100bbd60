package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/radio-ingest/cmd/ingest/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var opts app.Options
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&opts.InputPath, "i", "", "Path to the telemetry log, optionally gzip or zstd compressed")
	flag.StringVar(&opts.Table, "table", "", "Target table as namespace.table, overrides the configuration")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "Parse the log without writing to the catalog")
	flag.Parse()

	if opts.InputPath == "" {
		logger.Error("no input file provided")
		flag.Usage()
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if err = logLevel.UnmarshalText([]byte(config.Settings.LogLevel)); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, opts, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
