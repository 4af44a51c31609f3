package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "../../migrations", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{}, "../../migrations", logger)
		assert.Error(t, err)
		assert.Nil(t, migrator)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})

	// pgxpool.New does not dial until a connection is acquired.
	pool, err := pgxpool.New(context.Background(), "postgres://nobody@127.0.0.1:1/nothing?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	db := &DB{pool: pool, logger: logger}

	t.Run("fails with empty path", func(t *testing.T) {
		_, err := NewMigrator(db, "", logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations path is required")
	})

	t.Run("fails with missing path", func(t *testing.T) {
		_, err := NewMigrator(db, filepath.Join(t.TempDir(), "absent"), logger)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "000001_init.up.sql")
		require.NoError(t, os.WriteFile(file, []byte("SELECT 1;"), 0o600))

		_, err := NewMigrator(db, file, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a directory")
	})
}
