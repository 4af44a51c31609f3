// Package main provides the entry point for the NCBI harvest Temporal worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/temporal"
	"github.com/helixir/ncbi-query-service/internal/temporal/activities"
	"github.com/helixir/ncbi-query-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := app.NewLogger(cfg.Logging)
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("ncbi-query-service worker starting")

	if !cfg.Temporal.Enabled {
		return fmt.Errorf("temporal is disabled; set NCBIQS_TEMPORAL_ENABLED=true to run the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(app.MetricsNamespace)
	}

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	temporalClient, err := temporal.NewClient(app.TemporalClientConfig(cfg.Temporal, logger))
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	manager, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}
	manager.RegisterHarvest(workflows.HarvestQueryWorkflow, activities.NewHarvestActivities(a.Pipeline))

	if metrics != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer := &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown error")
			}
		}()
	}

	logger.Info().
		Str("task_queue", manager.TaskQueue()).
		Int("retrieve_concurrency", cfg.Temporal.RetrieveConcurrency).
		Msg("starting temporal worker")

	if err := manager.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("worker stopped via signal")
			return nil
		}
		return fmt.Errorf("worker error: %w", err)
	}

	return nil
}
