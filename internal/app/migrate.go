package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/database"
)

// MigrationAction names one schema migration operation.
type MigrationAction string

// Supported migration actions.
const (
	MigrateUp      MigrationAction = "up"
	MigrateDown    MigrationAction = "down"
	MigrateSteps   MigrationAction = "steps"
	MigrateVersion MigrationAction = "version"
	MigrateForce   MigrationAction = "force"
	MigrateDrop    MigrationAction = "drop"
)

// MigrationRequest is one migration operation. N is the step count for
// MigrateSteps and the version for MigrateForce.
type MigrationRequest struct {
	Action MigrationAction
	N      int
	// Path overrides the configured migrations directory.
	Path string
}

// Validate checks the request before a database connection is opened.
func (r MigrationRequest) Validate() error {
	switch r.Action {
	case MigrateUp, MigrateDown, MigrateVersion, MigrateDrop:
		return nil
	case MigrateSteps:
		if r.N == 0 {
			return fmt.Errorf("steps must be non-zero")
		}
		return nil
	case MigrateForce:
		if r.N < 0 {
			return fmt.Errorf("force version must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unknown migration action %q", r.Action)
	}
}

// Migrate connects to the configured database, applies req and returns the
// resulting schema version.
func Migrate(ctx context.Context, cfg *config.Config, req MigrationRequest, logger zerolog.Logger) (database.SchemaVersion, error) {
	if err := req.Validate(); err != nil {
		return database.SchemaVersion{}, err
	}

	path := cfg.Database.MigrationPath
	if req.Path != "" {
		path = req.Path
	}

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return database.SchemaVersion{}, fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return database.SchemaVersion{}, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch req.Action {
	case MigrateUp:
		return migrator.Up()
	case MigrateDown:
		return migrator.Down()
	case MigrateSteps:
		return migrator.Steps(req.N)
	case MigrateForce:
		return migrator.Force(req.N)
	case MigrateDrop:
		return migrator.Drop()
	default:
		return migrator.Version()
	}
}
