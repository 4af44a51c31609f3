// Package sources provides clients for the NCBI E-utilities databases.
//
// Each database (PubMed, PubMed Central) implements the Source interface: a
// search that returns source identifiers, and a fetch that maps one document
// into a domain.PaperRecord. The pipeline picks a source from a Registry by
// the database recorded on a query or paper.
//
// Example usage:
//
//	registry := sources.NewRegistry()
//	registry.Register(pubmed.New(cfg, eutils))
//	src, err := registry.Get(domain.DatabasePubMed)
//	result, err := src.Search(ctx, domain.SearchParams{Query: "asthma", MaxResults: 100})
package sources

import (
	"context"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Source is a bibliographic database reachable through E-utilities.
type Source interface {
	// Database returns the database this source serves.
	Database() domain.Database

	// Name returns a human-readable name used in logs and metrics.
	Name() string

	// Search runs esearch and returns matching identifiers.
	// A term that matches nothing yields an empty result, not an error.
	Search(ctx context.Context, params domain.SearchParams) (*domain.SearchResult, error)

	// Fetch runs efetch for a single identifier and maps the document.
	// A document that cannot be mapped yields a *domain.ParseError.
	Fetch(ctx context.Context, id string) (*domain.PaperRecord, error)
}

// RequestRecorder receives per-request telemetry. *observability.Metrics satisfies it.
type RequestRecorder interface {
	RecordSourceRequest(source, endpoint string, durationSeconds float64)
	RecordSourceRequestFailed(source, endpoint, errorType string)
	RecordSourceRateLimited(source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSourceRequest(string, string, float64)      {}
func (nopRecorder) RecordSourceRequestFailed(string, string, string) {}
func (nopRecorder) RecordSourceRateLimited(string)                   {}
