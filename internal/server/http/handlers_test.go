package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/temporal"
)

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "disabled", body["harvest"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, false)
	env.server.health = fakeHealth{status: "unhealthy"}

	rr := env.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "not_ready", decode[map[string]string](t, rr)["status"])
}

func TestCreateQuery(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/v1/queries", map[string]interface{}{
		"querystring": "  asthma AND children ",
		"database":    "pmc",
	}, "alice")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	resp := decode[queryResponse](t, rr)
	assert.Equal(t, "alice", resp.CreatedBy)
	assert.Equal(t, "asthma AND children", resp.QueryString)
	assert.Equal(t, "PMC", resp.Database)
	assert.Equal(t, domain.DefaultRetMax, resp.RetMax)
	assert.False(t, resp.Executed)
	assert.Equal(t, "/api/v1/papers?query="+resp.ID, resp.ResultsURL)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	stored, ok := env.store.Query(id)
	require.True(t, ok)
	assert.Equal(t, "alice", stored.CreatedBy)
}

func TestCreateQuery_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     interface{}
		user     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "missing user header",
			body:     map[string]interface{}{"querystring": "asthma", "database": "PubMed"},
			wantCode: http.StatusUnauthorized,
			wantMsg:  "X-Remote-User",
		},
		{
			name:     "invalid json",
			body:     "{not json",
			user:     "alice",
			wantCode: http.StatusBadRequest,
			wantMsg:  "invalid JSON",
		},
		{
			name:     "missing querystring",
			body:     map[string]interface{}{"database": "PubMed"},
			user:     "alice",
			wantCode: http.StatusBadRequest,
			wantMsg:  "querystring: required",
		},
		{
			name:     "unsupported database",
			body:     map[string]interface{}{"querystring": "asthma", "database": "Scopus"},
			user:     "alice",
			wantCode: http.StatusBadRequest,
			wantMsg:  "unsupported database",
		},
		{
			name:     "retmax too large",
			body:     map[string]interface{}{"querystring": "asthma", "database": "PubMed", "retmax": 20000},
			user:     "alice",
			wantCode: http.StatusBadRequest,
			wantMsg:  "retmax: max=10000",
		},
		{
			name:     "blank querystring",
			body:     map[string]interface{}{"querystring": "   ", "database": "PubMed"},
			user:     "alice",
			wantCode: http.StatusBadRequest,
			wantMsg:  "querystring",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, false)
			rr := env.do(t, http.MethodPost, "/api/v1/queries", tc.body, tc.user)
			assert.Equal(t, tc.wantCode, rr.Code)
			assert.Contains(t, decode[map[string]string](t, rr)["error"], tc.wantMsg)
		})
	}
}

func TestCreateQuery_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"querystring":"` + strings.Repeat("a", maxRequestBodySize) + `","database":"PubMed"}`

	rr := env.do(t, http.MethodPost, "/api/v1/queries", body, "alice")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestListQueries(t *testing.T) {
	env := newTestEnv(t, false)
	env.addQuery(t, true)
	env.addQuery(t, false)
	env.addQuery(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/queries?executed=false&limit=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[listQueriesResponse](t, rr)
	assert.Equal(t, int64(2), resp.TotalCount)
	assert.Len(t, resp.Queries, 1)
	assert.Equal(t, 1, resp.Limit)

	rr = env.do(t, http.MethodGet, "/api/v1/queries?database=PubMed&created_by=bob", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(0), decode[listQueriesResponse](t, rr).TotalCount)
}

func TestListQueries_BadParams(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{
		"/api/v1/queries?executed=maybe",
		"/api/v1/queries?limit=-1",
		"/api/v1/queries?offset=x",
		"/api/v1/queries?database=arxiv",
	} {
		rr := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestGetQuery(t *testing.T) {
	env := newTestEnv(t, false)
	q := env.addQuery(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/queries/"+q.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, q.ID.String(), decode[queryResponse](t, rr).ID)

	rr = env.do(t, http.MethodGet, "/api/v1/queries/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/queries/not-a-uuid", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query_id must be a valid UUID")
}

func TestListQueryChoices(t *testing.T) {
	env := newTestEnv(t, false)
	pending := env.addQuery(t, false)
	executed := env.addQuery(t, true)

	rr := env.do(t, http.MethodGet, "/api/v1/queries/choices", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[listChoicesResponse](t, rr)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, executed.ID, resp.Choices[0].ID)
	assert.Equal(t, "PubMed: asthma on 2024-03-01T12:00:00Z", resp.Choices[0].Label)
	assert.Equal(t, pending.ID, resp.Choices[1].ID)
	assert.Equal(t, "PubMed: asthma on never", resp.Choices[1].Label)
}

func TestExecuteQueries(t *testing.T) {
	env := newTestEnv(t, false)
	ok, failed := uuid.New(), uuid.New()

	env.pipeline.executeFn = func(_ context.Context, ids []uuid.UUID) ([]pipeline.QueryOutcome, error) {
		notFound := domain.NewNotFoundError("query", failed.String())
		return []pipeline.QueryOutcome{
			{QueryID: ok, Result: &pipeline.ExecuteResult{PaperIDs: []uuid.UUID{uuid.New()}, NewPapers: 1, TotalCount: 9}},
			{QueryID: failed, Err: notFound},
		}, errors.Join(notFound)
	}

	rr := env.do(t, http.MethodPost, "/api/v1/queries/actions/execute",
		map[string][]string{"ids": {ok.String(), failed.String(), ok.String()}}, "alice")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	assert.Equal(t, []uuid.UUID{ok, failed}, env.pipeline.calledWith)

	resp := decode[actionResponse](t, rr)
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, actionOK, resp.Results[0].Status)
	assert.Equal(t, actionFailed, resp.Results[1].Status)
	assert.Contains(t, resp.Results[1].Error, "query not found")

	detail, isMap := resp.Results[0].Detail.(map[string]interface{})
	require.True(t, isMap)
	assert.Equal(t, float64(9), detail["total_count"])
}

func TestBulkActions_Validation(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty ids", map[string][]string{"ids": {}}},
		{"missing ids", map[string]string{}},
		{"bad uuid", map[string][]string{"ids": {"nope"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, path := range []string{"/api/v1/queries/actions/execute", "/api/v1/papers/actions/retrieve"} {
				rr := env.do(t, http.MethodPost, path, tc.body, "alice")
				assert.Equal(t, http.StatusBadRequest, rr.Code, path)
			}
		})
	}
	assert.Nil(t, env.pipeline.calledWith)
}

func TestBulkActions_RequireUser(t *testing.T) {
	env := newTestEnv(t, false)
	body := map[string][]string{"ids": {uuid.NewString()}}

	rr := env.do(t, http.MethodPost, "/api/v1/queries/actions/execute", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = env.do(t, http.MethodPost, "/api/v1/papers/actions/retrieve", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStartHarvest(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, false)
		q := env.addQuery(t, false)

		rr := env.do(t, http.MethodPost, "/api/v1/queries/"+q.ID.String()+"/harvest", nil, "alice")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("started", func(t *testing.T) {
		env := newTestEnv(t, true)
		q := env.addQuery(t, false)

		rr := env.do(t, http.MethodPost, "/api/v1/queries/"+q.ID.String()+"/harvest", nil, "alice")
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

		resp := decode[harvestResponse](t, rr)
		assert.Equal(t, "harvest-"+q.ID.String(), resp.WorkflowID)
		assert.Equal(t, []uuid.UUID{q.ID}, env.harvester.started)
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.HarvestsStarted))
	})

	t.Run("unknown query", func(t *testing.T) {
		env := newTestEnv(t, true)

		rr := env.do(t, http.MethodPost, "/api/v1/queries/"+uuid.NewString()+"/harvest", nil, "alice")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Empty(t, env.harvester.started)
	})

	t.Run("already running", func(t *testing.T) {
		env := newTestEnv(t, true)
		q := env.addQuery(t, false)
		env.harvester.err = fmt.Errorf("start: %w", temporal.ErrWorkflowAlreadyStarted)

		rr := env.do(t, http.MethodPost, "/api/v1/queries/"+q.ID.String()+"/harvest", nil, "alice")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestRequestIDAndMetrics(t *testing.T) {
	env := newTestEnv(t, false)
	q := env.addQuery(t, false)

	rr := env.do(t, http.MethodGet, "/api/v1/queries/"+q.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	assert.Equal(t, float64(1), testutil.ToFloat64(
		env.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/queries/{queryID}", "200")))
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", domain.NewNotFoundError("paper", "x"), http.StatusNotFound},
		{"validation", domain.NewValidationError("retmax", "bad"), http.StatusBadRequest},
		{"already exists", domain.NewAlreadyExistsError("query", "x"), http.StatusConflict},
		{"unknown database", fmt.Errorf("%w: scopus", domain.ErrUnknownDatabase), http.StatusBadRequest},
		{"rate limited", domain.NewExternalAPIError("PubMed", 429, "slow down", nil), http.StatusTooManyRequests},
		{"upstream down", domain.NewExternalAPIError("PubMed", 503, "down", nil), http.StatusServiceUnavailable},
		{"malformed", domain.NewParseError("PubMed", "1", nil), http.StatusBadGateway},
		{"workflow running", temporal.ErrWorkflowAlreadyStarted, http.StatusConflict},
		{"unexpected", errors.New("pgx: connection refused to 10.0.0.5:5432"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tc.err)
			assert.Equal(t, tc.wantCode, rr.Code)
			assert.NotContains(t, rr.Body.String(), "10.0.0.5")
		})
	}
}

func TestItemErrorMessage(t *testing.T) {
	assert.Equal(t, "internal error", itemErrorMessage(errors.New("password authentication failed for user \"ncbiqs\"")))
	assert.Equal(t, "paper not found: 42", itemErrorMessage(fmt.Errorf("load: %w", domain.NewNotFoundError("paper", "42"))))
	assert.Contains(t, itemErrorMessage(domain.NewExternalAPIError("PMC", 502, "bad gateway", nil)), "PMC API error")
}
