package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTransactor mirrors database.DB.WithTransaction on top of a pgxmock pool.
type mockTransactor struct {
	pool pgxmock.PgxPoolIface
}

func (m mockTransactor) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func TestPgTxManager_Commit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	queryID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queries SET executed = TRUE").
		WithArgs(queryID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	mgr := NewPgTxManager(mockTransactor{pool: mock})
	err = mgr.WithRepositories(context.Background(), func(repos Repositories) error {
		return repos.Queries.MarkExecuted(context.Background(), queryID, now)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTxManager_Rollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	fnErr := errors.New("boom")
	mgr := NewPgTxManager(mockTransactor{pool: mock})
	err = mgr.WithRepositories(context.Background(), func(Repositories) error {
		return fnErr
	})

	assert.ErrorIs(t, err, fnErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRepositories(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repos := NewRepositories(mock)
	assert.IsType(t, &PgQueryRepository{}, repos.Queries)
	assert.IsType(t, &PgPaperRepository{}, repos.Papers)
	assert.IsType(t, &PgCatalogRepository{}, repos.Catalog)
}
