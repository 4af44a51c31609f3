package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entity get-or-create outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
)

// Metrics contains all Prometheus metrics for the NCBI query service.
// Metrics are organized by subsystem: queries, papers, catalog entities,
// E-utilities requests, harvests and the admin API.
type Metrics struct {
	// QueriesExecuted counts successful query executions, labeled by database.
	QueriesExecuted *prometheus.CounterVec

	// QueriesFailed counts failed query executions, labeled by database.
	QueriesFailed *prometheus.CounterVec

	// QueryDuration observes query execution duration in seconds, labeled by database.
	QueryDuration *prometheus.HistogramVec

	// ResultsPerQuery observes the number of identifiers a query returned, labeled by database.
	ResultsPerQuery *prometheus.HistogramVec

	// PapersRetrieved counts papers fetched and persisted, labeled by source.
	PapersRetrieved *prometheus.CounterVec

	// PapersSkipped counts retrievals of papers that were already retrieved, labeled by source.
	PapersSkipped *prometheus.CounterVec

	// PapersFailed counts failed retrievals, labeled by source.
	PapersFailed *prometheus.CounterVec

	// RetrievalDuration observes paper retrieval duration in seconds, labeled by source.
	RetrievalDuration *prometheus.HistogramVec

	// Entities counts get-or-create calls, labeled by entity and outcome.
	Entities *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to E-utilities, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests to E-utilities, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes HTTP request duration to E-utilities in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts 429 responses from E-utilities, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// HarvestsStarted counts harvest workflows started.
	HarvestsStarted prometheus.Counter

	// HTTPRequests counts admin API requests, labeled by method, route and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes admin API latency in seconds, labeled by method and route.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with the default registry.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Queries
		QueriesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_executed_total",
			Help:      "Total number of queries executed by database",
		}, []string{"database"}),
		QueriesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_failed_total",
			Help:      "Total number of query executions that failed by database",
		}, []string{"database"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of query executions in seconds by database",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"database"}),
		ResultsPerQuery: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "results_per_query",
			Help:      "Number of identifiers returned per query by database",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"database"}),

		// Papers
		PapersRetrieved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_retrieved_total",
			Help:      "Total number of papers retrieved by source",
		}, []string{"source"}),
		PapersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_skipped_total",
			Help:      "Total number of papers skipped because they were already retrieved",
		}, []string{"source"}),
		PapersFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_failed_total",
			Help:      "Total number of paper retrievals that failed by source",
		}, []string{"source"}),
		RetrievalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of paper retrievals in seconds by source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),

		// Catalog
		Entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Total number of get-or-create calls by entity and outcome",
		}, []string{"entity", "outcome"}),

		// Sources
		SourceRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to E-utilities",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to E-utilities",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to E-utilities in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from E-utilities",
		}, []string{"source"}),

		// Harvests
		HarvestsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvests_started_total",
			Help:      "Total number of harvest workflows started",
		}),

		// Admin API
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of admin API requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of admin API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordQueryExecuted records a successful query execution.
func (m *Metrics) RecordQueryExecuted(database string, resultCount int, durationSeconds float64) {
	m.QueriesExecuted.WithLabelValues(database).Inc()
	m.QueryDuration.WithLabelValues(database).Observe(durationSeconds)
	m.ResultsPerQuery.WithLabelValues(database).Observe(float64(resultCount))
}

// RecordQueryFailed records a failed query execution.
func (m *Metrics) RecordQueryFailed(database string, durationSeconds float64) {
	m.QueriesFailed.WithLabelValues(database).Inc()
	m.QueryDuration.WithLabelValues(database).Observe(durationSeconds)
}

// RecordPaperRetrieved records a paper fetched and persisted.
func (m *Metrics) RecordPaperRetrieved(source string, durationSeconds float64) {
	m.PapersRetrieved.WithLabelValues(source).Inc()
	m.RetrievalDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordPaperSkipped records a retrieval of an already retrieved paper.
func (m *Metrics) RecordPaperSkipped(source string) {
	m.PapersSkipped.WithLabelValues(source).Inc()
}

// RecordPaperFailed records a failed retrieval.
func (m *Metrics) RecordPaperFailed(source string, durationSeconds float64) {
	m.PapersFailed.WithLabelValues(source).Inc()
	m.RetrievalDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordEntity records the outcome of a get-or-create.
func (m *Metrics) RecordEntity(entity string, created bool) {
	outcome := OutcomeExisting
	if created {
		outcome = OutcomeCreated
	}
	m.Entities.WithLabelValues(entity, outcome).Inc()
}

// RecordSourceRequest records a request to E-utilities.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to E-utilities.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from E-utilities.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordHarvestStarted records a started harvest workflow.
func (m *Metrics) RecordHarvestStarted() {
	m.HarvestsStarted.Inc()
}

// RecordHTTPRequest records one admin API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
