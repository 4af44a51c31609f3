// Package app wires configuration into the runtime collaborators shared by
// the server, worker and ncbictl binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/database"
	"github.com/helixir/ncbi-query-service/internal/events"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/repository"
	"github.com/helixir/ncbi-query-service/internal/sources"
	"github.com/helixir/ncbi-query-service/internal/sources/pmc"
	"github.com/helixir/ncbi-query-service/internal/sources/pubmed"
	"github.com/helixir/ncbi-query-service/internal/temporal"
)

// MetricsNamespace prefixes every Prometheus metric of the service.
const MetricsNamespace = "ncbi_query_service"

// App holds the long-lived collaborators built from Config.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *database.DB
	Metrics   *observability.Metrics
	Publisher events.Publisher
	Registry  *sources.Registry
	Tx        *repository.PgTxManager
	Repos     repository.Repositories
	Pipeline  *pipeline.Service
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	})
}

// NewRegistry builds the PubMed and PMC sources over one rate-limited HTTP
// client, so the NCBI request budget is shared by both databases.
func NewRegistry(cfg config.NCBIConfig, metrics *observability.Metrics) *sources.Registry {
	var recorder sources.RequestRecorder
	if metrics != nil {
		recorder = metrics
	}

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  cfg.Burst,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Name:       "ncbi",
		Recorder:   recorder,
	})

	eutils := sources.NewEUtils(sources.EUtilsConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Tool:    cfg.Tool,
		Email:   cfg.Email,
	}, httpClient)
	if recorder != nil {
		eutils = eutils.WithRecorder(recorder)
	}

	registry := sources.NewRegistry()
	registry.Register(pubmed.New(eutils))
	registry.Register(pmc.New(eutils))
	return registry
}

// New connects to PostgreSQL, optionally applies migrations and builds the
// pipeline. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*App, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.MigrationAutoRun {
		if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	publisher := events.NewPublisher(cfg.Kafka, logger)
	registry := NewRegistry(cfg.NCBI, metrics)
	tx := repository.NewPgTxManager(db)

	opts := []pipeline.Option{pipeline.WithPublisher(publisher)}
	if metrics != nil {
		opts = append(opts, pipeline.WithMetrics(metrics))
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Metrics:   metrics,
		Publisher: publisher,
		Registry:  registry,
		Tx:        tx,
		Repos:     repository.NewRepositories(db),
		Pipeline:  pipeline.NewService(tx, registry, logger, opts...),
	}, nil
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	version, err := migrator.Up()
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if version.Dirty {
		return fmt.Errorf("schema version %s is dirty; fix it with the migrate force command", version)
	}
	return nil
}

// TemporalClientConfig maps the temporal section onto the client configuration.
func TemporalClientConfig(cfg config.TemporalConfig, logger zerolog.Logger) temporal.ClientConfig {
	return temporal.ClientConfig{
		HostPort:            cfg.HostPort,
		Namespace:           cfg.Namespace,
		TaskQueue:           cfg.TaskQueue,
		RetrieveConcurrency: cfg.RetrieveConcurrency,
		Logger:              observability.NewTemporalLogger(logger),
	}
}

// Close flushes the event publisher and closes the database pool.
func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("failed to close event publisher")
	}
	a.DB.Close()
}
