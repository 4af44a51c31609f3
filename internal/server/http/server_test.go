package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/database"
	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/repository/repotest"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type fakePipeline struct {
	executeFn  func(ctx context.Context, ids []uuid.UUID) ([]pipeline.QueryOutcome, error)
	retrieveFn func(ctx context.Context, ids []uuid.UUID) ([]pipeline.PaperOutcome, error)
	calledWith []uuid.UUID
}

func (f *fakePipeline) ExecuteQueries(ctx context.Context, ids []uuid.UUID) ([]pipeline.QueryOutcome, error) {
	f.calledWith = ids
	if f.executeFn != nil {
		return f.executeFn(ctx, ids)
	}
	return nil, nil
}

func (f *fakePipeline) RetrievePapers(ctx context.Context, ids []uuid.UUID) ([]pipeline.PaperOutcome, error) {
	f.calledWith = ids
	if f.retrieveFn != nil {
		return f.retrieveFn(ctx, ids)
	}
	return nil, nil
}

type fakeHarvester struct {
	err     error
	started []uuid.UUID
}

func (f *fakeHarvester) StartHarvest(_ context.Context, queryID uuid.UUID) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	f.started = append(f.started, queryID)
	return "harvest-" + queryID.String(), "run-1", nil
}

type fakeHealth struct {
	status string
}

func (f fakeHealth) Health(context.Context) database.HealthStatus {
	return database.HealthStatus{Status: f.status}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testEnv struct {
	store     *repotest.Store
	pipeline  *fakePipeline
	harvester *fakeHarvester
	metrics   *observability.Metrics
	server    *Server
}

func newTestEnv(t *testing.T, withHarvester bool) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    repotest.NewStore(),
		pipeline: &fakePipeline{},
		metrics:  observability.NewMetricsWith(prometheus.NewRegistry(), "test"),
	}

	deps := Deps{
		Repos:    env.store.Repositories(),
		Pipeline: env.pipeline,
		Health:   fakeHealth{status: "healthy"},
		Metrics:  env.metrics,
	}
	if withHarvester {
		env.harvester = &fakeHarvester{}
		deps.Harvester = env.harvester
	}

	env.server = NewServer(Config{Address: ":0"}, deps, zerolog.Nop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, user string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewReader([]byte(b))
		default:
			raw, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}

	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (e *testEnv) addQuery(t *testing.T, executed bool) *domain.Query {
	t.Helper()
	q, err := domain.NewQuery("alice", "asthma", domain.DatabasePubMed, 20)
	require.NoError(t, err)
	if executed {
		at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		q.Executed = true
		q.ExecutedOn = &at
	}
	e.store.PutQuery(q)
	return q
}

func (e *testEnv) addPaper(identifier string, retrieved bool) *domain.Paper {
	p := &domain.Paper{
		ID:         uuid.New(),
		Identifier: identifier,
		Source:     domain.DatabasePubMed,
		Retrieved:  retrieved,
		CreatedAt:  time.Now().UTC(),
	}
	e.store.PutPaper(p)
	return p
}
