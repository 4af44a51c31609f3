package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// QueryRepository handles saved searches and their results.
type QueryRepository interface {
	// Create inserts a new query.
	Create(ctx context.Context, query *domain.Query) error

	// Get retrieves a query by its UUID, including its result count.
	// Returns domain.ErrNotFound if no matching query exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.Query, error)

	// List retrieves queries matching the filter and the total count.
	List(ctx context.Context, filter QueryFilter) ([]*domain.Query, int64, error)

	// MarkExecuted sets executed and executed_on.
	MarkExecuted(ctx context.Context, id uuid.UUID, at time.Time) error

	// AddResults links papers to a query. Repeated links are ignored.
	AddResults(ctx context.Context, queryID uuid.UUID, paperIDs []uuid.UUID) error

	// ResultIDs returns the ids of the papers linked to a query.
	ResultIDs(ctx context.Context, queryID uuid.UUID) ([]uuid.UUID, error)

	// Choices lists every query as a paper-filter choice, most recently
	// executed first and never-executed queries last.
	Choices(ctx context.Context) ([]domain.QueryChoice, error)
}

// QueryFilter narrows query listings.
type QueryFilter struct {
	Database  *domain.Database
	CreatedBy string
	Executed  *bool
	Limit     int
	Offset    int
}

// Validate applies pagination defaults.
func (f *QueryFilter) Validate() error {
	if f.Database != nil && !f.Database.Valid() {
		return domain.NewValidationError("database", "unsupported database "+string(*f.Database))
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
