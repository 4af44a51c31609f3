//go:build integration

package pipeline

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/database"
	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/repository"
	"github.com/helixir/ncbi-query-service/internal/sources"
)

func setupDatabase(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ncbi_test"),
		postgres.WithUsername("ncbi"),
		postgres.WithPassword("ncbi"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	db, err := database.New(ctx, &config.DatabaseConfig{
		Host:              host,
		Port:              portNum,
		User:              "ncbi",
		Password:          "ncbi",
		Name:              "ncbi_test",
		SSLMode:           config.SSLModeDisable,
		MaxConns:          4,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	migrator, err := database.NewMigrator(db, "../../migrations", zerolog.Nop())
	require.NoError(t, err)
	defer migrator.Close()
	_, err = migrator.Up()
	require.NoError(t, err)

	return db
}

func TestPipeline_Postgres(t *testing.T) {
	db := setupDatabase(t)
	ctx := context.Background()

	source := &fakeSource{
		db:     domain.DatabasePubMed,
		search: &domain.SearchResult{Identifiers: []string{"111", "222"}, TotalCount: 2},
		records: map[string]*domain.PaperRecord{
			"111": sampleRecord(nil),
		},
	}
	date := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	second := sampleRecord(&date)
	second.Identifier = "222"
	source.records["222"] = second

	registry := sources.NewRegistry()
	registry.Register(source)
	metrics := observability.NewMetricsWith(prometheus.NewRegistry(), "it")
	svc := NewService(repository.NewPgTxManager(db), registry, zerolog.Nop(), WithMetrics(metrics))

	repos := repository.NewRepositories(db)
	q, err := domain.NewQuery("alice", "asthma", domain.DatabasePubMed, 10)
	require.NoError(t, err)
	require.NoError(t, repos.Queries.Create(ctx, q))

	executed, err := svc.ExecuteQuery(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, executed.PaperIDs, 2)

	outcomes, err := svc.RetrievePapers(ctx, executed.PaperIDs)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	again, err := svc.RetrievePaper(ctx, executed.PaperIDs[0])
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	stored, err := repos.Queries.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, stored.Executed)
	assert.Equal(t, 2, stored.ResultCount)

	detail, err := repos.Papers.GetDetail(ctx, executed.PaperIDs[0])
	require.NoError(t, err)
	assert.True(t, detail.Retrieved)
	require.NotNil(t, detail.Journal)
	assert.Equal(t, "Thorax", detail.Journal.Title)
	assert.Len(t, detail.Authors, 2)
	assert.Len(t, detail.MeSHHeadings, 3)
	assert.Len(t, detail.Grants, 2)

	counts := map[string]int{
		"persons":       2,
		"grants":        2,
		"agencies":      2,
		"countries":     2,
		"journals":      1,
		"mesh_headings": 3,
		"affiliations":  6,
	}
	for table, want := range counts {
		var got int
		require.NoError(t, db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&got), table)
		assert.Equal(t, want, got, table)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PapersRetrieved.WithLabelValues("PubMed")))

	retrieved := true
	papers, total, err := repos.Papers.List(ctx, repository.PaperFilter{QueryID: &q.ID, Retrieved: &retrieved})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, papers, 2)
}
