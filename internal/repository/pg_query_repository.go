package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Compile-time interface verification.
var _ QueryRepository = (*PgQueryRepository)(nil)

// PgQueryRepository is a PostgreSQL implementation of QueryRepository.
type PgQueryRepository struct {
	db DBTX
}

// NewPgQueryRepository creates a new PostgreSQL query repository.
func NewPgQueryRepository(db DBTX) *PgQueryRepository {
	return &PgQueryRepository{db: db}
}

const queryColumns = `q.id, q.created_by, q.created_on, q.executed_on, q.executed,
			q.querystring, q.database, q.retmax,
			(SELECT COUNT(*) FROM query_results qr WHERE qr.query_id = q.id) AS result_count`

// Create inserts a new query.
func (r *PgQueryRepository) Create(ctx context.Context, query *domain.Query) error {
	if query == nil {
		return domain.NewValidationError("query", "query cannot be nil")
	}
	if query.ID == uuid.Nil {
		query.ID = uuid.New()
	}
	if query.CreatedOn.IsZero() {
		query.CreatedOn = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO queries (id, created_by, created_on, executed_on, executed, querystring, database, retmax)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		query.ID,
		query.CreatedBy,
		query.CreatedOn,
		query.ExecutedOn,
		query.Executed,
		query.QueryString,
		string(query.Database),
		query.RetMax,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return domain.NewAlreadyExistsError("query", query.ID.String())
		}
		return fmt.Errorf("failed to create query: %w", err)
	}
	return nil
}

// Get retrieves a query by its UUID.
func (r *PgQueryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Query, error) {
	q, err := scanQuery(r.db.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries q WHERE q.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("query", id.String())
		}
		return nil, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

// List retrieves queries matching the filter criteria.
func (r *PgQueryRepository) List(ctx context.Context, filter QueryFilter) ([]*domain.Query, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Database != nil {
		conditions = append(conditions, fmt.Sprintf("q.database = $%d", argIndex))
		args = append(args, string(*filter.Database))
		argIndex++
	}

	if filter.CreatedBy != "" {
		conditions = append(conditions, fmt.Sprintf("q.created_by = $%d", argIndex))
		args = append(args, filter.CreatedBy)
		argIndex++
	}

	if filter.Executed != nil {
		conditions = append(conditions, fmt.Sprintf("q.executed = $%d", argIndex))
		args = append(args, *filter.Executed)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var totalCount int64
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM queries q %s", whereClause), args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count queries: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM queries q
		%s
		ORDER BY q.created_on DESC
		LIMIT $%d OFFSET $%d`,
		queryColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	queries := make([]*domain.Query, 0, filter.Limit)
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan query: %w", err)
		}
		queries = append(queries, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating queries: %w", err)
	}

	return queries, totalCount, nil
}

// MarkExecuted sets executed and executed_on.
func (r *PgQueryRepository) MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE queries SET executed = TRUE, executed_on = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark query executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("query", id.String())
	}
	return nil
}

// AddResults links papers to a query.
func (r *PgQueryRepository) AddResults(ctx context.Context, queryID uuid.UUID, paperIDs []uuid.UUID) error {
	if len(paperIDs) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO query_results (query_id, paper_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`,
		queryID, paperIDs)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return domain.NewNotFoundError("query or paper", queryID.String())
		}
		return fmt.Errorf("failed to add query results: %w", err)
	}
	return nil
}

// ResultIDs returns the ids of the papers linked to a query.
func (r *PgQueryRepository) ResultIDs(ctx context.Context, queryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT qr.paper_id
		FROM query_results qr
		JOIN papers p ON p.id = qr.paper_id
		WHERE qr.query_id = $1
		ORDER BY p.identifier`, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list query results: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan query result: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query results: %w", err)
	}
	return ids, nil
}

// Choices lists every query as a paper-filter choice. Queries that never ran
// come last and are labelled "never".
func (r *PgQueryRepository) Choices(ctx context.Context) ([]domain.QueryChoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+queryColumns+`
		FROM queries q
		ORDER BY q.executed_on DESC NULLS LAST, q.created_on DESC, q.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list query choices: %w", err)
	}
	defer rows.Close()

	choices := []domain.QueryChoice{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		choices = append(choices, domain.QueryChoice{ID: q.ID, Label: q.Label()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating query choices: %w", err)
	}
	return choices, nil
}

func scanQuery(row pgx.Row) (*domain.Query, error) {
	var q domain.Query
	var database string
	var resultCount int64
	if err := row.Scan(
		&q.ID,
		&q.CreatedBy,
		&q.CreatedOn,
		&q.ExecutedOn,
		&q.Executed,
		&q.QueryString,
		&database,
		&q.RetMax,
		&resultCount,
	); err != nil {
		return nil, err
	}
	q.Database = domain.Database(database)
	q.ResultCount = int(resultCount)
	return &q, nil
}
