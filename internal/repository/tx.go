package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repositories bundles the repositories bound to one DBTX.
type Repositories struct {
	Queries QueryRepository
	Papers  PaperRepository
	Catalog CatalogRepository
}

// NewRepositories binds the PostgreSQL repositories to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Queries: NewPgQueryRepository(db),
		Papers:  NewPgPaperRepository(db),
		Catalog: NewPgCatalogRepository(db),
	}
}

// TxManager runs a unit of work against repositories sharing one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithRepositories(ctx context.Context, fn func(repos Repositories) error) error
}

// Transactor starts transactions. *database.DB satisfies it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// PgTxManager implements TxManager over a Transactor.
type PgTxManager struct {
	db Transactor
}

// NewPgTxManager creates a transaction manager.
func NewPgTxManager(db Transactor) *PgTxManager {
	return &PgTxManager{db: db}
}

// WithRepositories implements TxManager.
func (m *PgTxManager) WithRepositories(ctx context.Context, fn func(repos Repositories) error) error {
	return m.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return fn(NewRepositories(tx))
	})
}
