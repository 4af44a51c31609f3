package sources

import (
	"fmt"
	"sort"
	"sync"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Registry maps databases to their sources.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.Database]Source
}

// NewRegistry creates a new registry with an empty source map.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.Database]Source),
	}
}

// Register adds a source to the registry.
// If a source for the same database already exists, it will be replaced.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.Database()] = source
}

// Get returns the source for db, or an error wrapping domain.ErrUnknownDatabase.
func (r *Registry) Get(db domain.Database) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[db]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDatabase, db)
	}
	return source, nil
}

// Databases returns the registered databases in name order.
func (r *Registry) Databases() []domain.Database {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dbs := make([]domain.Database, 0, len(r.sources))
	for db := range r.sources {
		dbs = append(dbs, db)
	}
	sort.Slice(dbs, func(i, j int) bool { return dbs[i] < dbs[j] })
	return dbs
}
