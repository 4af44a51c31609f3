// Package main applies the schema migrations of the NCBI query service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Run all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := flag.Bool("version", false, "Print the current migration version")
	force := flag.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	drop := flag.Bool("drop", false, "Drop every table (destructive)")
	configPath := flag.String("config", "", "Config file (default: ./config.yaml)")
	migrationsPath := flag.String("path", "", "Override the migrations directory path")
	flag.Parse()

	var requests []app.MigrationRequest
	if *up {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateUp})
	}
	if *down {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateDown})
	}
	if *steps != 0 {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateSteps, N: *steps})
	}
	if *version {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateVersion})
	}
	if *force >= 0 {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateForce, N: *force})
	}
	if *drop {
		requests = append(requests, app.MigrationRequest{Action: app.MigrateDrop})
	}

	switch len(requests) {
	case 0:
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify one of: -up, -down, -steps N, -version, -force V, -drop")
		return fmt.Errorf("no action specified")
	case 1:
	default:
		return fmt.Errorf("specify only one action at a time")
	}

	req := requests[0]
	req.Path = *migrationsPath

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	schemaVersion, err := app.Migrate(ctx, cfg, req, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("action", string(req.Action)).
		Stringer("version", schemaVersion).
		Bool("dirty", schemaVersion.Dirty).
		Msg("current schema version")
	return nil
}
