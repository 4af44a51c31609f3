package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
	"github.com/helixir/ncbi-query-service/internal/temporal"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()

	content := "ncbi:\n" +
		"  base_url: " + baseURL + "\n" +
		"  rate_limit: 100\n" +
		"  burst: 10\n" +
		"  max_retries: 0\n" +
		"  timeout: 5s\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func esearchServer(t *testing.T, body string) (*httptest.Server, *url.URL) {
	t.Helper()

	captured := &url.URL{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = *r.URL
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const esearchBody = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult><Count>120</Count><RetMax>2</RetMax><RetStart>0</RetStart>
<IdList><Id>38012345</Id><Id>37999999</Id></IdList></eSearchResult>`

func TestSearchCommand(t *testing.T) {
	t.Run("prints identifiers and total", func(t *testing.T) {
		server, req := esearchServer(t, esearchBody)
		cfg := writeConfig(t, server.URL)

		out, err := run(t, "--config", cfg, "search", "pubmed", "asthma[mh]", "--retmax", "2", "--retstart", "10")
		require.NoError(t, err)

		assert.Contains(t, out, "38012345\n37999999\n")
		assert.Contains(t, out, "2 of 120 total")

		assert.Equal(t, "/esearch.fcgi", req.Path)
		assert.Equal(t, "pubmed", req.Query().Get("db"))
		assert.Equal(t, "asthma[mh]", req.Query().Get("term"))
		assert.Equal(t, "2", req.Query().Get("retmax"))
		assert.Equal(t, "10", req.Query().Get("retstart"))
	})

	t.Run("joins remaining args into the term", func(t *testing.T) {
		server, req := esearchServer(t, esearchBody)
		cfg := writeConfig(t, server.URL)

		_, err := run(t, "--config", cfg, "search", "PMC", "crispr", "cas9")
		require.NoError(t, err)

		assert.Equal(t, "pmc", req.Query().Get("db"))
		assert.Equal(t, "crispr cas9", req.Query().Get("term"))
	})

	t.Run("json output", func(t *testing.T) {
		server, _ := esearchServer(t, esearchBody)
		cfg := writeConfig(t, server.URL)

		out, err := run(t, "--config", cfg, "-o", "json", "search", "pubmed", "asthma")
		require.NoError(t, err)

		var got struct {
			Database    string   `json:"database"`
			Term        string   `json:"term"`
			Identifiers []string `json:"identifiers"`
			Total       int      `json:"total"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, "PubMed", got.Database)
		assert.Equal(t, "asthma", got.Term)
		assert.Equal(t, []string{"38012345", "37999999"}, got.Identifiers)
		assert.Equal(t, 120, got.Total)
	})

	t.Run("unknown database", func(t *testing.T) {
		server, _ := esearchServer(t, esearchBody)
		cfg := writeConfig(t, server.URL)

		_, err := run(t, "--config", cfg, "search", "embase", "asthma")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("requires a term", func(t *testing.T) {
		server, _ := esearchServer(t, esearchBody)
		cfg := writeConfig(t, server.URL)

		_, err := run(t, "--config", cfg, "search", "pubmed")
		require.Error(t, err)
	})
}

func TestRootCommand_RejectsUnknownOutputFormat(t *testing.T) {
	server, _ := esearchServer(t, esearchBody)
	cfg := writeConfig(t, server.URL)

	_, err := run(t, "--config", cfg, "-o", "yaml", "search", "pubmed", "asthma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestQueryCreate_ValidatesBeforeConnecting(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing term", []string{"--db", "pubmed", "--user", "alice"}, "Term"},
		{"missing database", []string{"--term", "asthma", "--user", "alice"}, "Database"},
		{"unknown database", []string{"--db", "embase", "--term", "asthma", "--user", "alice"}, "Database"},
		{"retmax out of range", []string{"--db", "pubmed", "--term", "asthma", "--user", "alice", "--retmax", "0"}, "RetMax"},
		{"missing user", []string{"--db", "pubmed", "--term", "asthma", "--user", ""}, "User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfg, "query", "create"}, tt.args...)
			_, err := run(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid query")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommands_RejectMalformedIDs(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	for _, args := range [][]string{
		{"query", "show", "nope"},
		{"query", "execute", uuid.NewString(), "nope"},
		{"paper", "show", "nope"},
		{"paper", "retrieve", "nope"},
	} {
		t.Run(args[0]+" "+args[1], func(t *testing.T) {
			_, err := run(t, append([]string{"--config", cfg}, args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `invalid id "nope"`)
		})
	}
}

func TestQueryHarvest_RequiresTemporal(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	_, err := run(t, "--config", cfg, "query", "harvest", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporal is not enabled")
}

type fakeHarvester struct {
	startErr  error
	cancelErr error
	started   []uuid.UUID
	cancelled []uuid.UUID
}

func (f *fakeHarvester) StartHarvest(_ context.Context, queryID uuid.UUID) (string, string, error) {
	f.started = append(f.started, queryID)
	if f.startErr != nil {
		return "", "", f.startErr
	}
	return temporal.HarvestWorkflowID(queryID), "run-1", nil
}

func (f *fakeHarvester) CancelHarvest(_ context.Context, queryID uuid.UUID) error {
	f.cancelled = append(f.cancelled, queryID)
	return f.cancelErr
}

func TestRunHarvest(t *testing.T) {
	queryID := uuid.New()
	newCLI := func(format string) (*cli, *bytes.Buffer) {
		var out bytes.Buffer
		c := &cli{out: &out, format: format, cfg: &config.Config{}}
		c.cfg.Temporal.HostPort = "temporal.internal:7233"
		return c, &out
	}

	t.Run("start prints workflow and run", func(t *testing.T) {
		c, out := newCLI(formatTable)
		h := &fakeHarvester{}

		require.NoError(t, c.runHarvest(context.Background(), h, queryID, false))
		assert.Equal(t, []uuid.UUID{queryID}, h.started)
		assert.Equal(t, "started "+temporal.HarvestWorkflowID(queryID)+" (run run-1)\n", out.String())
	})

	t.Run("start as json", func(t *testing.T) {
		c, out := newCLI(formatJSON)

		require.NoError(t, c.runHarvest(context.Background(), &fakeHarvester{}, queryID, false))
		var got map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, temporal.HarvestWorkflowID(queryID), got["workflow_id"])
		assert.Equal(t, "run-1", got["run_id"])
	})

	t.Run("cancel prints workflow", func(t *testing.T) {
		c, out := newCLI(formatTable)
		h := &fakeHarvester{}

		require.NoError(t, c.runHarvest(context.Background(), h, queryID, true))
		assert.Equal(t, []uuid.UUID{queryID}, h.cancelled)
		assert.Empty(t, h.started)
		assert.Equal(t, "cancelled "+temporal.HarvestWorkflowID(queryID)+"\n", out.String())
	})

	tests := []struct {
		name    string
		cancel  bool
		h       *fakeHarvester
		wantMsg string
		wantIs  error
	}{
		{
			name:    "already running",
			h:       &fakeHarvester{startErr: &temporal.TemporalError{Op: "StartHarvest", Kind: temporal.ErrWorkflowAlreadyStarted}},
			wantMsg: "a harvest of query " + queryID.String() + " is already running",
		},
		{
			name:    "start unreachable",
			h:       &fakeHarvester{startErr: &temporal.TemporalError{Op: "StartHarvest", Kind: temporal.ErrConnectionFailed}},
			wantMsg: "temporal at temporal.internal:7233 is unreachable",
			wantIs:  temporal.ErrConnectionFailed,
		},
		{
			name:    "nothing to cancel",
			cancel:  true,
			h:       &fakeHarvester{cancelErr: &temporal.TemporalError{Op: "CancelHarvest", Kind: temporal.ErrWorkflowNotFound}},
			wantMsg: "no harvest of query " + queryID.String() + " is running",
		},
		{
			name:    "cancel unreachable",
			cancel:  true,
			h:       &fakeHarvester{cancelErr: &temporal.TemporalError{Op: "CancelHarvest", Kind: temporal.ErrConnectionFailed}},
			wantMsg: "temporal at temporal.internal:7233 is unreachable",
			wantIs:  temporal.ErrConnectionFailed,
		},
		{
			name:    "other errors pass through",
			h:       &fakeHarvester{startErr: errors.New("boom")},
			wantMsg: "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newCLI(formatTable)

			err := c.runHarvest(context.Background(), tt.h, queryID, tt.cancel)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Empty(t, out.String())
		})
	}
}

func TestMigrateCommand_ArgumentErrors(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1")

	t.Run("steps needs an integer", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "migrate", "steps", "two")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid step count "two"`)
	})

	t.Run("steps rejects zero", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "migrate", "steps", "0")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "steps must be non-zero")
	})

	t.Run("drop needs confirmation", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "migrate", "drop")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--yes")
	})
}

func TestParseUUIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseUUIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = parseUUIDs([]string{a.String(), "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid id "x"`)
}

func TestOutcomeViews(t *testing.T) {
	ok, failed, skipped := uuid.New(), uuid.New(), uuid.New()

	views := paperOutcomeViews([]pipeline.PaperOutcome{
		{PaperID: ok, Result: &pipeline.RetrieveResult{Authors: 3, Headings: 2, Grants: 1}},
		{PaperID: failed, Err: domain.NewNotFoundError("paper", failed.String())},
		{PaperID: skipped, Result: &pipeline.RetrieveResult{Skipped: true}},
	})

	require.Len(t, views, 3)
	assert.Equal(t, "ok", views[0].Status)
	assert.Equal(t, "3 authors, 2 headings, 1 grants", views[0].Detail)
	assert.Equal(t, "failed", views[1].Status)
	assert.NotEmpty(t, views[1].Error)
	assert.Equal(t, "skipped", views[2].Status)

	err := failedOutcomes(views)
	require.Error(t, err)
	assert.Equal(t, "1 of 3 failed", err.Error())

	assert.NoError(t, failedOutcomes(views[:1]))
}

func TestQueryOutcomeViews(t *testing.T) {
	id := uuid.New()

	views := queryOutcomeViews([]pipeline.QueryOutcome{
		{QueryID: id, Result: &pipeline.ExecuteResult{PaperIDs: []uuid.UUID{uuid.New(), uuid.New()}, NewPapers: 1, TotalCount: 40}},
	})

	require.Len(t, views, 1)
	assert.Equal(t, "2 papers (1 new) of 40", views[0].Detail)
}

func TestPrintQueries_Table(t *testing.T) {
	var out bytes.Buffer
	c := &cli{out: &out, format: formatTable}

	executed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	q := queryView{
		ID:          uuid.MustParse("8d1c1f0e-2f43-4c8e-9a57-2b0f1f1a3c11"),
		Database:    "PubMed",
		QueryString: "asthma[mh]",
		RetMax:      100,
		ExecutedOn:  &executed,
		ResultCount: 42,
	}

	require.NoError(t, c.printQueries([]queryView{q}, 7))

	text := out.String()
	assert.Contains(t, text, "ID")
	assert.Contains(t, text, "8d1c1f0e-2f43-4c8e-9a57-2b0f1f1a3c11")
	assert.Contains(t, text, "2024-03-01T12:00:00Z")
	assert.Contains(t, text, "1 of 7 queries")
}

func TestPaperDetailView(t *testing.T) {
	title := "Airway remodeling"
	published := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	detail := &domain.PaperDetail{
		Paper: domain.Paper{
			ID:         uuid.New(),
			Title:      &title,
			PubDate:    &published,
			Identifier: "34000001",
			Source:     domain.DatabasePubMed,
			Retrieved:  true,
		},
		Journal:      &domain.Journal{Title: "Thorax", ISSN: "0040-6376"},
		Authors:      []domain.Person{{ForeName: "Ada", LastName: "Lovelace"}},
		MeSHHeadings: []domain.MeSHHeading{{Descriptor: "Asthma", Qualifier: "therapy"}},
		Grants:       []domain.Grant{{GrantID: "R01 HL123", Acronym: "HL", Agency: "NHLBI NIH HHS"}},
	}

	v := newPaperDetailView(detail)

	assert.Equal(t, "Airway remodeling", v.Title)
	assert.Equal(t, "2021-06-01", v.PubDate)
	assert.Equal(t, "Thorax (0040-6376)", v.Journal)
	assert.Equal(t, []string{"Ada Lovelace"}, v.Authors)
	assert.Equal(t, []string{"Asthma/therapy"}, v.MeSH)
	assert.Equal(t, []string{"R01 HL123/HL NHLBI NIH HHS"}, v.Grants)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
