// Package repotest provides in-memory repositories for tests of packages
// that depend on the repository interfaces.
//
// A Store implements repository.TxManager by handing the same in-memory
// repositories to every unit of work. Writes are not rolled back when the
// unit of work fails.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

// Store holds every table in memory.
type Store struct {
	mu sync.Mutex

	queries      map[uuid.UUID]*domain.Query
	queryResults map[uuid.UUID][]uuid.UUID

	papers        map[uuid.UUID]*domain.Paper
	paperKeys     map[string]uuid.UUID
	paperAuthors  map[uuid.UUID][]uuid.UUID
	paperHeadings map[uuid.UUID][]uuid.UUID
	paperGrants   map[uuid.UUID][]uuid.UUID

	countries    map[string]*domain.Country
	institutions map[string]*domain.Institution
	agencies     map[string]*domain.Agency
	grants       map[string]*domain.Grant
	journals     map[string]*domain.Journal
	persons      map[string]*domain.Person
	affiliations map[string]*domain.Affiliation
	descriptors  map[string]*domain.MeSHDescriptor
	qualifiers   map[string]*domain.MeSHQualifier
	headings     map[string]*domain.MeSHHeading

	failures     map[string]error
	transactions int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		queries:       make(map[uuid.UUID]*domain.Query),
		queryResults:  make(map[uuid.UUID][]uuid.UUID),
		papers:        make(map[uuid.UUID]*domain.Paper),
		paperKeys:     make(map[string]uuid.UUID),
		paperAuthors:  make(map[uuid.UUID][]uuid.UUID),
		paperHeadings: make(map[uuid.UUID][]uuid.UUID),
		paperGrants:   make(map[uuid.UUID][]uuid.UUID),
		countries:     make(map[string]*domain.Country),
		institutions:  make(map[string]*domain.Institution),
		agencies:      make(map[string]*domain.Agency),
		grants:        make(map[string]*domain.Grant),
		journals:      make(map[string]*domain.Journal),
		persons:       make(map[string]*domain.Person),
		affiliations:  make(map[string]*domain.Affiliation),
		descriptors:   make(map[string]*domain.MeSHDescriptor),
		qualifiers:    make(map[string]*domain.MeSHQualifier),
		headings:      make(map[string]*domain.MeSHHeading),
		failures:      make(map[string]error),
	}
}

// Repositories returns repositories backed by the store.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Queries: &queryRepo{s: s},
		Papers:  &paperRepo{s: s},
		Catalog: &catalogRepo{s: s},
	}
}

// WithRepositories implements repository.TxManager.
func (s *Store) WithRepositories(_ context.Context, fn func(repos repository.Repositories) error) error {
	s.mu.Lock()
	s.transactions++
	s.mu.Unlock()
	return fn(s.Repositories())
}

// Transactions returns the number of units of work run so far.
func (s *Store) Transactions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactions
}

// FailOn makes the named method return err, e.g. "Papers.MarkRetrieved".
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// fail must be called with s.mu held.
func (s *Store) fail(method string) error {
	return s.failures[method]
}

// PutQuery stores a copy of q.
func (s *Store) PutQuery(q *domain.Query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.queries[q.ID] = &cp
}

// PutPaper stores a copy of p.
func (s *Store) PutPaper(p *domain.Paper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.papers[p.ID] = &cp
	s.paperKeys[paperKey(p.Identifier, p.Source)] = p.ID
}

// Query returns a copy of the stored query.
func (s *Store) Query(id uuid.UUID) (domain.Query, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[id]
	if !ok {
		return domain.Query{}, false
	}
	return *q, true
}

// Paper returns a copy of the stored paper.
func (s *Store) Paper(id uuid.UUID) (domain.Paper, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.papers[id]
	if !ok {
		return domain.Paper{}, false
	}
	return *p, true
}

// PaperByIdentifier returns a copy of the paper keyed by identifier and source.
func (s *Store) PaperByIdentifier(identifier string, source domain.Database) (domain.Paper, bool) {
	s.mu.Lock()
	id, ok := s.paperKeys[paperKey(identifier, source)]
	s.mu.Unlock()
	if !ok {
		return domain.Paper{}, false
	}
	return s.Paper(id)
}

// Count returns the number of rows stored for an entity: "papers", "countries",
// "institutions", "agencies", "grants", "journals", "persons", "affiliations",
// "mesh_descriptors", "mesh_qualifiers" or "mesh_headings".
func (s *Store) Count(entity string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch entity {
	case "papers":
		return len(s.papers)
	case "countries":
		return len(s.countries)
	case "institutions":
		return len(s.institutions)
	case "agencies":
		return len(s.agencies)
	case "grants":
		return len(s.grants)
	case "journals":
		return len(s.journals)
	case "persons":
		return len(s.persons)
	case "affiliations":
		return len(s.affiliations)
	case "mesh_descriptors":
		return len(s.descriptors)
	case "mesh_qualifiers":
		return len(s.qualifiers)
	case "mesh_headings":
		return len(s.headings)
	}
	return 0
}

func paperKey(identifier string, source domain.Database) string {
	return string(source) + "\x00" + identifier
}

func appendUnique(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func sortByTimeDesc[T any](items []T, at func(T) time.Time, tie func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return tie(items[i]) < tie(items[j])
	})
}
