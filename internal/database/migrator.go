package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// MigrationsTable records the applied schema version.
const MigrationsTable = "schema_migrations"

// SchemaVersion is the state recorded in MigrationsTable.
type SchemaVersion struct {
	Version uint
	Dirty   bool
	// Applied is false before the first migration and after Drop.
	Applied bool
}

// String renders the version for logs and the CLI.
func (v SchemaVersion) String() string {
	switch {
	case !v.Applied:
		return "none"
	case v.Dirty:
		return fmt.Sprintf("%d (dirty)", v.Version)
	default:
		return fmt.Sprintf("%d", v.Version)
	}
}

// Migrator applies the numbered SQL files under a migrations directory.
type Migrator struct {
	m      *migrate.Migrate
	sqlDB  *sql.DB
	logger zerolog.Logger
}

// migrateLogger routes golang-migrate's progress lines to zerolog at debug.
type migrateLogger struct {
	logger zerolog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.GetLevel() <= zerolog.DebugLevel
}

// NewMigrator opens a migrator over db for the files in path.
func NewMigrator(db *DB, path string, logger zerolog.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if path == "" {
		return nil, fmt.Errorf("migrations path is required")
	}
	if info, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("migrations path %q: %w", path, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("migrations path %q is not a directory", path)
	}

	logger = logger.With().Str("component", "migrator").Str("path", path).Logger()

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = migrateLogger{logger: logger}

	return &Migrator{m: m, sqlDB: sqlDB, logger: logger}, nil
}

// Version reads the current schema version.
func (m *Migrator) Version() (SchemaVersion, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaVersion{Version: v, Dirty: dirty, Applied: true}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() (SchemaVersion, error) {
	return m.run("up", m.m.Up)
}

// Down rolls back every migration.
func (m *Migrator) Down() (SchemaVersion, error) {
	return m.run("down", m.m.Down)
}

// Steps applies n migrations, or rolls back -n when n is negative.
func (m *Migrator) Steps(n int) (SchemaVersion, error) {
	return m.run(fmt.Sprintf("steps %+d", n), func() error { return m.m.Steps(n) })
}

// Force records version as applied and clean without running anything.
// It is the way out of a dirty state after a failed migration.
func (m *Migrator) Force(version int) (SchemaVersion, error) {
	return m.run(fmt.Sprintf("force %d", version), func() error { return m.m.Force(version) })
}

// Drop removes every table, including MigrationsTable, so there is no
// version to read afterwards.
func (m *Migrator) Drop() (SchemaVersion, error) {
	before, err := m.Version()
	if err != nil {
		return SchemaVersion{}, err
	}
	if err := m.m.Drop(); err != nil {
		return SchemaVersion{}, fmt.Errorf("drop schema: %w", err)
	}
	m.logger.Warn().Stringer("from", before).Msg("schema dropped")
	return SchemaVersion{}, nil
}

// run executes op and logs the schema version before and after it. Having
// nothing to apply is not an error; Steps past the last file reports
// os.ErrNotExist, which is treated the same way.
func (m *Migrator) run(action string, op func() error) (SchemaVersion, error) {
	before, err := m.Version()
	if err != nil {
		return SchemaVersion{}, err
	}

	err = op()
	switch {
	case err == nil:
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, os.ErrNotExist):
		m.logger.Info().Str("action", action).Stringer("version", before).Msg("schema already current")
		return before, nil
	default:
		after, _ := m.Version()
		m.logger.Error().Err(err).Str("action", action).Stringer("from", before).Stringer("to", after).Msg("migration failed")
		return after, fmt.Errorf("migration %s failed at version %s: %w", action, after, err)
	}

	after, err := m.Version()
	if err != nil {
		return SchemaVersion{}, err
	}
	m.logger.Info().Str("action", action).Stringer("from", before).Stringer("to", after).Msg("schema migrated")
	return after, nil
}

// Close releases the source and the database/sql handle over the pool.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if err := m.sqlDB.Close(); err != nil && dbErr == nil {
		dbErr = err
	}
	return errors.Join(srcErr, dbErr)
}
