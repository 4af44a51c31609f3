package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

func TestListPapers(t *testing.T) {
	env := newTestEnv(t, false)
	q := env.addQuery(t, true)
	inQuery := env.addPaper("111", true)
	env.addPaper("222", false)

	ctx := context.Background()
	require.NoError(t, env.store.Repositories().Queries.AddResults(ctx, q.ID, []uuid.UUID{inQuery.ID}))

	rr := env.do(t, http.MethodGet, "/api/v1/papers", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), decode[listPapersResponse](t, rr).TotalCount)

	rr = env.do(t, http.MethodGet, "/api/v1/papers?query="+q.ID.String()+"&retrieved=true&source=pubmed", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[listPapersResponse](t, rr)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "111", resp.Papers[0].Identifier)

	rr = env.do(t, http.MethodGet, "/api/v1/papers?retrieved=false", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decode[listPapersResponse](t, rr)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, "222", resp.Papers[0].Identifier)
	assert.Nil(t, resp.Papers[0].Title)
}

func TestListPapers_BadParams(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{
		"/api/v1/papers?query=nope",
		"/api/v1/papers?source=arxiv",
		"/api/v1/papers?retrieved=yes-please",
	} {
		rr := env.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestListQueryResults(t *testing.T) {
	env := newTestEnv(t, false)
	q := env.addQuery(t, true)
	p := env.addPaper("111", false)
	env.addPaper("222", false)
	require.NoError(t, env.store.Repositories().Queries.AddResults(context.Background(), q.ID, []uuid.UUID{p.ID}))

	rr := env.do(t, http.MethodGet, "/api/v1/queries/"+q.ID.String()+"/results", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[listPapersResponse](t, rr)
	require.Len(t, resp.Papers, 1)
	assert.Equal(t, p.ID.String(), resp.Papers[0].ID)

	rr = env.do(t, http.MethodGet, "/api/v1/queries/"+uuid.NewString()+"/results", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetPaper(t *testing.T) {
	env := newTestEnv(t, false)
	p := env.addPaper("111", true)

	ctx := context.Background()
	repos := env.store.Repositories()
	journal, _, err := repos.Catalog.GetOrCreateJournal(ctx, "Thorax", "0040-6376")
	require.NoError(t, err)
	person, _, err := repos.Catalog.GetOrCreatePerson(ctx, "Smith", "John", "J")
	require.NoError(t, err)
	descriptor, _, err := repos.Catalog.GetOrCreateDescriptor(ctx, "Asthma")
	require.NoError(t, err)
	qualifier, _, err := repos.Catalog.GetOrCreateQualifier(ctx, "therapy")
	require.NoError(t, err)
	heading, _, err := repos.Catalog.GetOrCreateHeading(ctx, descriptor.ID, &qualifier.ID)
	require.NoError(t, err)
	grant, _, err := repos.Catalog.GetOrCreateGrant(ctx, "R01", "HL", nil)
	require.NoError(t, err)

	title := "Airway inflammation"
	date := time.Date(2020, 5, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Papers.UpdateMetadata(ctx, p.ID, repository.PaperMetadata{
		Title: &title, Abstract: "text", PubDate: &date, JournalID: &journal.ID,
	}))
	require.NoError(t, repos.Papers.AddAuthor(ctx, p.ID, person.ID, 1))
	require.NoError(t, repos.Papers.AddMeSHHeading(ctx, p.ID, heading.ID))
	require.NoError(t, repos.Papers.AddGrant(ctx, p.ID, grant.ID))

	rr := env.do(t, http.MethodGet, "/api/v1/papers/"+p.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[paperDetailResponse](t, rr)
	require.NotNil(t, resp.Title)
	assert.Equal(t, title, *resp.Title)
	require.NotNil(t, resp.PubDate)
	assert.Equal(t, "2020-05-04", *resp.PubDate)
	require.NotNil(t, resp.Journal)
	assert.Equal(t, "Thorax", resp.Journal.Title)
	require.Len(t, resp.Authors, 1)
	assert.Equal(t, "John Smith", resp.Authors[0].Name)
	require.Len(t, resp.MeSHHeadings, 1)
	assert.Equal(t, "Asthma/therapy", resp.MeSHHeadings[0].Label)
	require.Len(t, resp.Grants, 1)
	assert.Equal(t, "R01", resp.Grants[0].GrantID)

	rr = env.do(t, http.MethodGet, "/api/v1/papers/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRetrievePapers(t *testing.T) {
	env := newTestEnv(t, false)
	fetched, skipped, broken := uuid.New(), uuid.New(), uuid.New()

	env.pipeline.retrieveFn = func(_ context.Context, _ []uuid.UUID) ([]pipeline.PaperOutcome, error) {
		parseErr := domain.NewParseError("PubMed", "333", errors.New("unexpected EOF"))
		return []pipeline.PaperOutcome{
			{PaperID: fetched, Result: &pipeline.RetrieveResult{Authors: 3, Headings: 2, Grants: 1}},
			{PaperID: skipped, Result: &pipeline.RetrieveResult{Skipped: true}},
			{PaperID: broken, Err: parseErr},
		}, parseErr
	}

	rr := env.do(t, http.MethodPost, "/api/v1/papers/actions/retrieve",
		map[string][]string{"ids": {fetched.String(), skipped.String(), broken.String()}}, "alice")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[actionResponse](t, rr)
	assert.Equal(t, 2, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, actionOK, resp.Results[0].Status)
	assert.Equal(t, actionSkipped, resp.Results[1].Status)
	assert.Equal(t, actionFailed, resp.Results[2].Status)
	assert.Contains(t, resp.Results[2].Error, "malformed response")

	detail, ok := resp.Results[0].Detail.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), detail["authors"])
}
