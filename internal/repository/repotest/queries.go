package repotest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

type queryRepo struct {
	s *Store
}

var _ repository.QueryRepository = (*queryRepo)(nil)

func (r *queryRepo) Create(_ context.Context, q *domain.Query) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.Create"); err != nil {
		return err
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedOn.IsZero() {
		q.CreatedOn = time.Now().UTC()
	}
	if _, ok := r.s.queries[q.ID]; ok {
		return domain.NewAlreadyExistsError("query", q.ID.String())
	}
	cp := *q
	r.s.queries[q.ID] = &cp
	return nil
}

func (r *queryRepo) Get(_ context.Context, id uuid.UUID) (*domain.Query, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.Get"); err != nil {
		return nil, err
	}
	q, ok := r.s.queries[id]
	if !ok {
		return nil, domain.NewNotFoundError("query", id.String())
	}
	return r.s.queryWithCount(q), nil
}

func (r *queryRepo) List(_ context.Context, filter repository.QueryFilter) ([]*domain.Query, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.List"); err != nil {
		return nil, 0, err
	}

	var matched []*domain.Query
	for _, q := range r.s.queries {
		if filter.Database != nil && q.Database != *filter.Database {
			continue
		}
		if filter.CreatedBy != "" && q.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.Executed != nil && q.Executed != *filter.Executed {
			continue
		}
		matched = append(matched, r.s.queryWithCount(q))
	}
	sortByTimeDesc(matched,
		func(q *domain.Query) time.Time { return q.CreatedOn },
		func(q *domain.Query) string { return q.ID.String() })

	return paginate(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func (r *queryRepo) MarkExecuted(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.MarkExecuted"); err != nil {
		return err
	}
	q, ok := r.s.queries[id]
	if !ok {
		return domain.NewNotFoundError("query", id.String())
	}
	q.Executed = true
	q.ExecutedOn = &at
	return nil
}

func (r *queryRepo) AddResults(_ context.Context, queryID uuid.UUID, paperIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.AddResults"); err != nil {
		return err
	}
	if len(paperIDs) == 0 {
		return nil
	}
	if _, ok := r.s.queries[queryID]; !ok {
		return domain.NewNotFoundError("query or paper", queryID.String())
	}
	for _, id := range paperIDs {
		if _, ok := r.s.papers[id]; !ok {
			return domain.NewNotFoundError("query or paper", queryID.String())
		}
		r.s.queryResults[queryID] = appendUnique(r.s.queryResults[queryID], id)
	}
	return nil
}

func (r *queryRepo) ResultIDs(_ context.Context, queryID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.ResultIDs"); err != nil {
		return nil, err
	}
	ids := append([]uuid.UUID{}, r.s.queryResults[queryID]...)
	sort.SliceStable(ids, func(i, j int) bool {
		return r.s.papers[ids[i]].Identifier < r.s.papers[ids[j]].Identifier
	})
	return ids, nil
}

func (r *queryRepo) Choices(_ context.Context) ([]domain.QueryChoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Queries.Choices"); err != nil {
		return nil, err
	}

	all := make([]*domain.Query, 0, len(r.s.queries))
	for _, q := range r.s.queries {
		all = append(all, q)
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch {
		case (a.ExecutedOn == nil) != (b.ExecutedOn == nil):
			return a.ExecutedOn != nil
		case a.ExecutedOn != nil && !a.ExecutedOn.Equal(*b.ExecutedOn):
			return a.ExecutedOn.After(*b.ExecutedOn)
		case !a.CreatedOn.Equal(b.CreatedOn):
			return a.CreatedOn.After(b.CreatedOn)
		default:
			return a.ID.String() < b.ID.String()
		}
	})

	choices := make([]domain.QueryChoice, 0, len(all))
	for _, q := range all {
		choices = append(choices, domain.QueryChoice{ID: q.ID, Label: q.Label()})
	}
	return choices, nil
}

// queryWithCount must be called with s.mu held.
func (s *Store) queryWithCount(q *domain.Query) *domain.Query {
	cp := *q
	cp.ResultCount = len(s.queryResults[q.ID])
	return &cp
}
