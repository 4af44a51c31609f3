// Package observability provides logging and metrics support for the NCBI
// query service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithQueryContext(logger, queryID.String(), "PubMed")
//	logger.Info().Int("results", n).Msg("query executed")
//
// Request-scoped fields travel in the context and are attached with
// LoggerFromContext:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	ctx = observability.WithUser(ctx, user)
//	log := observability.LoggerFromContext(ctx, logger)
//
// # Metrics
//
//	metrics := observability.NewMetrics("ncbiqs")
//	metrics.RecordQueryExecuted("PubMed", 42, 1.3)
//	metrics.RecordEntity("person", created)
//
// Metrics also satisfy the sources.RequestRecorder interface so the
// E-utilities client can report request counts, failures and 429s.
//
// # Standard Fields
//
//   - request_id: admin API request identifier
//   - user: caller identity from the trusted user header
//   - query_id, database: saved query being executed
//   - paper_id, source, identifier: paper being retrieved
//   - workflow_id, workflow_run_id: harvest workflow
package observability
