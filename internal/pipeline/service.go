package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/events"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/repository"
	"github.com/helixir/ncbi-query-service/internal/sources"
)

// SourceProvider resolves the source serving a database. *sources.Registry satisfies it.
type SourceProvider interface {
	Get(db domain.Database) (sources.Source, error)
}

// Service runs query executions and paper retrievals.
type Service struct {
	tx        repository.TxManager
	sources   SourceProvider
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher. Events are dropped by default.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the metrics sink. Metrics are skipped when nil.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for executed_on and retrieved_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a pipeline service.
func NewService(tx repository.TxManager, provider SourceProvider, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		tx:        tx,
		sources:   provider,
		publisher: events.NoopPublisher{},
		logger:    logger.With().Str("component", "pipeline").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExecuteResult describes one executed query.
type ExecuteResult struct {
	Query      *domain.Query
	PaperIDs   []uuid.UUID
	NewPapers  int
	TotalCount int
}

// ExecuteQuery searches the query's database and links a stub paper for every
// returned identifier to the query. Executing a query again refreshes its
// results and executed_on.
func (s *Service) ExecuteQuery(ctx context.Context, queryID uuid.UUID) (*ExecuteResult, error) {
	start := time.Now()

	var query *domain.Query
	err := s.tx.WithRepositories(ctx, func(repos repository.Repositories) error {
		var err error
		query, err = repos.Queries.Get(ctx, queryID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load query %s: %w", queryID, err)
	}

	logger := observability.WithQueryContext(
		observability.LoggerFromContext(ctx, s.logger), query.ID.String(), query.Database.String())

	result, err := s.executeQuery(ctx, query)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordQueryFailed(query.Database.String(), time.Since(start).Seconds())
		}
		logger.Error().Err(err).Msg("query execution failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordQueryExecuted(query.Database.String(), len(result.PaperIDs), time.Since(start).Seconds())
	}
	logger.Info().
		Int("results", len(result.PaperIDs)).
		Int("new_papers", result.NewPapers).
		Int("total_count", result.TotalCount).
		Dur("duration", time.Since(start)).
		Msg("query executed")

	s.publish(ctx, domain.EventTypeQueryExecuted, query.ID.String(), domain.QueryExecutedPayload{
		QueryID:     query.ID,
		Database:    query.Database,
		QueryString: query.QueryString,
		ResultCount: len(result.PaperIDs),
		TotalCount:  result.TotalCount,
	})

	return result, nil
}

func (s *Service) executeQuery(ctx context.Context, query *domain.Query) (*ExecuteResult, error) {
	src, err := s.sources.Get(query.Database)
	if err != nil {
		return nil, err
	}

	retMax := query.RetMax
	if retMax <= 0 {
		retMax = domain.DefaultRetMax
	}

	found, err := src.Search(ctx, domain.SearchParams{Query: query.QueryString, MaxResults: retMax})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", src.Name(), err)
	}

	result := &ExecuteResult{
		Query:      query,
		PaperIDs:   make([]uuid.UUID, 0, len(found.Identifiers)),
		TotalCount: found.TotalCount,
	}
	executedAt := s.now()
	tally := newEntityTally()

	err = s.tx.WithRepositories(ctx, func(repos repository.Repositories) error {
		seen := make(map[uuid.UUID]bool, len(found.Identifiers))
		for _, identifier := range found.Identifiers {
			paper, created, err := repos.Papers.GetOrCreateStub(ctx, identifier, query.Database)
			if err != nil {
				return fmt.Errorf("stub paper %s: %w", identifier, err)
			}
			tally.add(entityPaper, created)
			if created {
				result.NewPapers++
			}
			if seen[paper.ID] {
				continue
			}
			seen[paper.ID] = true
			result.PaperIDs = append(result.PaperIDs, paper.ID)
		}

		if err := repos.Queries.AddResults(ctx, query.ID, result.PaperIDs); err != nil {
			return fmt.Errorf("link results: %w", err)
		}
		return repos.Queries.MarkExecuted(ctx, query.ID, executedAt)
	})
	if err != nil {
		return nil, err
	}

	tally.record(s.metrics)
	query.Executed = true
	query.ExecutedOn = &executedAt
	query.ResultCount = len(result.PaperIDs)

	return result, nil
}

// RetrieveResult describes one retrieved paper.
type RetrieveResult struct {
	Paper *domain.Paper
	// Skipped is set when the paper had already been retrieved.
	Skipped  bool
	Authors  int
	Headings int
	Grants   int
}

// RetrievePaper fetches a paper's record and persists it. A paper that is
// already retrieved is returned unchanged.
func (s *Service) RetrievePaper(ctx context.Context, paperID uuid.UUID) (*RetrieveResult, error) {
	start := time.Now()

	var paper *domain.Paper
	err := s.tx.WithRepositories(ctx, func(repos repository.Repositories) error {
		var err error
		paper, err = repos.Papers.Get(ctx, paperID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load paper %s: %w", paperID, err)
	}

	logger := observability.WithPaperContext(
		observability.LoggerFromContext(ctx, s.logger), paper.ID.String(), paper.Source.String(), paper.Identifier)

	if paper.Retrieved {
		if s.metrics != nil {
			s.metrics.RecordPaperSkipped(paper.Source.String())
		}
		logger.Debug().Msg("paper already retrieved")
		return &RetrieveResult{Paper: paper, Skipped: true}, nil
	}

	result, err := s.retrievePaper(ctx, paper)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPaperFailed(paper.Source.String(), time.Since(start).Seconds())
		}
		logger.Error().Err(err).Msg("paper retrieval failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPaperRetrieved(paper.Source.String(), time.Since(start).Seconds())
	}
	logger.Info().
		Int("authors", result.Authors).
		Int("mesh_headings", result.Headings).
		Int("grants", result.Grants).
		Dur("duration", time.Since(start)).
		Msg("paper retrieved")

	s.publish(ctx, domain.EventTypePaperRetrieved, paper.ID.String(), domain.PaperRetrievedPayload{
		PaperID:    paper.ID,
		Source:     paper.Source,
		Identifier: paper.Identifier,
		Authors:    result.Authors,
		Headings:   result.Headings,
		Grants:     result.Grants,
	})

	return result, nil
}

func (s *Service) retrievePaper(ctx context.Context, paper *domain.Paper) (*RetrieveResult, error) {
	src, err := s.sources.Get(paper.Source)
	if err != nil {
		return nil, err
	}

	record, err := src.Fetch(ctx, paper.Identifier)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", src.Name(), paper.Identifier, err)
	}

	retrievedAt := s.now()
	tally := newEntityTally()
	var result *RetrieveResult

	err = s.tx.WithRepositories(ctx, func(repos repository.Repositories) error {
		p := &persister{repos: repos, paper: paper, tally: tally}
		var err error
		result, err = p.persist(ctx, record)
		if err != nil {
			return err
		}
		return repos.Papers.MarkRetrieved(ctx, paper.ID, retrievedAt)
	})
	if err != nil {
		return nil, err
	}

	tally.record(s.metrics)
	paper.Retrieved = true
	paper.RetrievedAt = &retrievedAt
	result.Paper = paper

	return result, nil
}

// Search runs a search without persisting anything.
func (s *Service) Search(ctx context.Context, db domain.Database, params domain.SearchParams) (*domain.SearchResult, error) {
	src, err := s.sources.Get(db)
	if err != nil {
		return nil, err
	}
	if params.MaxResults <= 0 {
		params.MaxResults = domain.DefaultRetMax
	}
	return src.Search(ctx, params)
}

// publish emits an event after a committed action. Failures are logged only.
func (s *Service) publish(ctx context.Context, eventType, entityID string, payload interface{}) {
	event, err := domain.NewEvent(eventType, entityID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("entity_id", entityID).
			Msg("failed to publish event")
	}
}
