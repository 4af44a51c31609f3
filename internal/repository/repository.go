// Package repository provides data access interfaces and PostgreSQL
// implementations for the NCBI query service.
//
// # Repository Interfaces
//
//   - QueryRepository: saved searches and their result links
//   - PaperRepository: papers, their stubs and their many-to-many links
//   - CatalogRepository: get-or-create access to the normalized entities
//     (journals, persons, affiliations, institutions, grants, agencies,
//     countries and MeSH descriptors, qualifiers and headings)
//
// # Get-or-create
//
// Catalog rows are deduplicated by unique constraints. Each get-or-create runs
// a single INSERT ... ON CONFLICT DO NOTHING combined with a lookup of the
// existing row, so defaults passed on creation never overwrite stored values.
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Pass the transaction from database.DB.WithTransaction for atomic operations:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    papers := repository.NewPgPaperRepository(tx)
//	    catalog := repository.NewPgCatalogRepository(tx)
//	    ...
//	})
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/ncbi-query-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}

// Postgres error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// getOrCreateAttempts bounds the retries of a get-or-create whose insert lost
// a race and whose lookup ran on a snapshot that predates the winner's commit.
const getOrCreateAttempts = 2

// getOrCreate runs query, which must insert-or-select exactly one row, and scans it.
func getOrCreate(ctx context.Context, db DBTX, query string, args []interface{}, dest ...interface{}) error {
	var err error
	for attempt := 0; attempt < getOrCreateAttempts; attempt++ {
		err = db.QueryRow(ctx, query, args...).Scan(dest...)
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
	}
	return err
}
