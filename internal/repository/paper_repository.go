package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// PaperRepository handles paper persistence and the links from papers to
// authors, MeSH headings and grants.
type PaperRepository interface {
	// GetOrCreateStub returns the paper keyed by (identifier, source), creating an
	// unretrieved stub if needed. The bool reports whether a row was created.
	GetOrCreateStub(ctx context.Context, identifier string, source domain.Database) (*domain.Paper, bool, error)

	// Get retrieves a paper by its UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetDetail retrieves a paper with its journal, authors, headings and grants.
	GetDetail(ctx context.Context, id uuid.UUID) (*domain.PaperDetail, error)

	// List retrieves papers matching the filter and the total count.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)

	// UpdateMetadata stores the fetched title, abstract, date and journal.
	UpdateMetadata(ctx context.Context, id uuid.UUID, update PaperMetadata) error

	// AddAuthor links a person to a paper. Repeated links are ignored.
	AddAuthor(ctx context.Context, paperID, personID uuid.UUID, position int) error

	// AddMeSHHeading links a heading to a paper. Repeated links are ignored.
	AddMeSHHeading(ctx context.Context, paperID, headingID uuid.UUID) error

	// AddGrant links a grant to a paper. Repeated links are ignored.
	AddGrant(ctx context.Context, paperID, grantID uuid.UUID) error

	// MarkRetrieved flags the paper as fully retrieved.
	MarkRetrieved(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PaperMetadata holds the fields written when a paper is retrieved.
type PaperMetadata struct {
	Title     *string
	Abstract  string
	PubDate   *time.Time
	JournalID *uuid.UUID
}

// PaperFilter narrows paper listings.
type PaperFilter struct {
	QueryID   *uuid.UUID
	Source    *domain.Database
	Retrieved *bool
	Limit     int
	Offset    int
}

// Validate applies pagination defaults.
func (f *PaperFilter) Validate() error {
	if f.Source != nil && !f.Source.Valid() {
		return domain.NewValidationError("source", "unsupported database "+string(*f.Source))
	}
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
