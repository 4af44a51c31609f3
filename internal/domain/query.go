package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRetMax is the number of identifiers requested when a query does not set one.
const DefaultRetMax = 100

// MaxRetMax caps the per-query result window accepted by esearch.
const MaxRetMax = 10000

// Query is a saved search against one database.
type Query struct {
	ID          uuid.UUID
	CreatedBy   string
	CreatedOn   time.Time
	ExecutedOn  *time.Time
	Executed    bool
	QueryString string
	Database    Database
	RetMax      int
	ResultCount int
}

// NewQuery builds an unexecuted query owned by createdBy.
func NewQuery(createdBy, queryString string, db Database, retMax int) (*Query, error) {
	createdBy = strings.TrimSpace(createdBy)
	queryString = strings.TrimSpace(queryString)

	if createdBy == "" {
		return nil, NewValidationError("created_by", "must not be empty")
	}
	if queryString == "" {
		return nil, NewValidationError("querystring", "must not be empty")
	}
	if !db.Valid() {
		return nil, NewValidationError("database", "unsupported database "+string(db))
	}
	if retMax == 0 {
		retMax = DefaultRetMax
	}
	if retMax < 0 || retMax > MaxRetMax {
		return nil, NewValidationError("retmax", fmt.Sprintf("must be between 1 and %d", MaxRetMax))
	}

	return &Query{
		ID:          uuid.New(),
		CreatedBy:   createdBy,
		CreatedOn:   time.Now().UTC(),
		QueryString: queryString,
		Database:    db,
		RetMax:      retMax,
	}, nil
}

// Label renders the query the way list filters show it.
func (q *Query) Label() string {
	executed := "never"
	if q.ExecutedOn != nil {
		executed = q.ExecutedOn.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s: %s on %s", q.Database, q.QueryString, executed)
}

// String implements fmt.Stringer.
func (q *Query) String() string {
	return q.QueryString
}

// QueryChoice is one entry of the paper list's query filter.
type QueryChoice struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}
