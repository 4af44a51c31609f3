package repotest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

type paperRepo struct {
	s *Store
}

var _ repository.PaperRepository = (*paperRepo)(nil)

func (r *paperRepo) GetOrCreateStub(_ context.Context, identifier string, source domain.Database) (*domain.Paper, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.GetOrCreateStub"); err != nil {
		return nil, false, err
	}
	key := paperKey(identifier, source)
	if id, ok := r.s.paperKeys[key]; ok {
		cp := *r.s.papers[id]
		return &cp, false, nil
	}
	p := &domain.Paper{
		ID:         uuid.New(),
		Identifier: identifier,
		Source:     source,
		CreatedAt:  time.Now().UTC(),
	}
	r.s.papers[p.ID] = p
	r.s.paperKeys[key] = p.ID
	cp := *p
	return &cp, true, nil
}

func (r *paperRepo) Get(_ context.Context, id uuid.UUID) (*domain.Paper, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.Get"); err != nil {
		return nil, err
	}
	p, ok := r.s.papers[id]
	if !ok {
		return nil, domain.NewNotFoundError("paper", id.String())
	}
	cp := *p
	return &cp, nil
}

func (r *paperRepo) GetDetail(_ context.Context, id uuid.UUID) (*domain.PaperDetail, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.GetDetail"); err != nil {
		return nil, err
	}
	p, ok := r.s.papers[id]
	if !ok {
		return nil, domain.NewNotFoundError("paper", id.String())
	}

	detail := &domain.PaperDetail{
		Paper:        *p,
		Authors:      []domain.Person{},
		MeSHHeadings: []domain.MeSHHeading{},
		Grants:       []domain.Grant{},
	}
	if p.JournalID != nil {
		for _, j := range r.s.journals {
			if j.ID == *p.JournalID {
				cp := *j
				detail.Journal = &cp
			}
		}
	}
	for _, personID := range r.s.paperAuthors[id] {
		for _, person := range r.s.persons {
			if person.ID == personID {
				detail.Authors = append(detail.Authors, *person)
			}
		}
	}
	for _, headingID := range r.s.paperHeadings[id] {
		for _, h := range r.s.headings {
			if h.ID == headingID {
				detail.MeSHHeadings = append(detail.MeSHHeadings, *h)
			}
		}
	}
	for _, grantID := range r.s.paperGrants[id] {
		for _, g := range r.s.grants {
			if g.ID == grantID {
				detail.Grants = append(detail.Grants, *g)
			}
		}
	}
	sort.SliceStable(detail.MeSHHeadings, func(i, j int) bool {
		return detail.MeSHHeadings[i].String() < detail.MeSHHeadings[j].String()
	})
	sort.SliceStable(detail.Grants, func(i, j int) bool {
		return detail.Grants[i].GrantID < detail.Grants[j].GrantID
	})
	return detail, nil
}

func (r *paperRepo) List(_ context.Context, filter repository.PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.List"); err != nil {
		return nil, 0, err
	}

	var inQuery map[uuid.UUID]bool
	if filter.QueryID != nil {
		inQuery = make(map[uuid.UUID]bool)
		for _, id := range r.s.queryResults[*filter.QueryID] {
			inQuery[id] = true
		}
	}

	var matched []*domain.Paper
	for _, p := range r.s.papers {
		if inQuery != nil && !inQuery[p.ID] {
			continue
		}
		if filter.Source != nil && p.Source != *filter.Source {
			continue
		}
		if filter.Retrieved != nil && p.Retrieved != *filter.Retrieved {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sortByTimeDesc(matched,
		func(p *domain.Paper) time.Time { return p.CreatedAt },
		func(p *domain.Paper) string { return p.Identifier })

	return paginate(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func (r *paperRepo) UpdateMetadata(_ context.Context, id uuid.UUID, update repository.PaperMetadata) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.UpdateMetadata"); err != nil {
		return err
	}
	p, ok := r.s.papers[id]
	if !ok {
		return domain.NewNotFoundError("paper", id.String())
	}
	p.Title = update.Title
	p.Abstract = update.Abstract
	p.PubDate = update.PubDate
	p.JournalID = update.JournalID
	return nil
}

func (r *paperRepo) AddAuthor(_ context.Context, paperID, personID uuid.UUID, _ int) error {
	return r.link("Papers.AddAuthor", r.s.paperAuthors, paperID, personID)
}

func (r *paperRepo) AddMeSHHeading(_ context.Context, paperID, headingID uuid.UUID) error {
	return r.link("Papers.AddMeSHHeading", r.s.paperHeadings, paperID, headingID)
}

func (r *paperRepo) AddGrant(_ context.Context, paperID, grantID uuid.UUID) error {
	return r.link("Papers.AddGrant", r.s.paperGrants, paperID, grantID)
}

func (r *paperRepo) link(method string, links map[uuid.UUID][]uuid.UUID, paperID, targetID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail(method); err != nil {
		return err
	}
	if _, ok := r.s.papers[paperID]; !ok {
		return domain.NewNotFoundError("paper", paperID.String())
	}
	links[paperID] = appendUnique(links[paperID], targetID)
	return nil
}

func (r *paperRepo) MarkRetrieved(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Papers.MarkRetrieved"); err != nil {
		return err
	}
	p, ok := r.s.papers[id]
	if !ok {
		return domain.NewNotFoundError("paper", id.String())
	}
	p.Retrieved = true
	p.RetrievedAt = &at
	return nil
}

// Links returns the ids linked to a paper: "authors", "mesh_headings" or "grants".
func (s *Store) Links(paperID uuid.UUID, kind string) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "authors":
		return append([]uuid.UUID{}, s.paperAuthors[paperID]...)
	case "mesh_headings":
		return append([]uuid.UUID{}, s.paperHeadings[paperID]...)
	case "grants":
		return append([]uuid.UUID{}, s.paperGrants[paperID]...)
	}
	return nil
}
