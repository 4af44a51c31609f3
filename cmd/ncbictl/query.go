package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/observability"
	"github.com/helixir/ncbi-query-service/internal/repository"
	"github.com/helixir/ncbi-query-service/internal/temporal"
)

// createQueryInput is validated before any connection is opened.
type createQueryInput struct {
	Database string `validate:"required,oneof=pubmed PubMed pmc PMC"`
	Term     string `validate:"required,max=4000"`
	RetMax   int    `validate:"gte=1,lte=10000"`
	User     string `validate:"required,max=150"`
}

func (c *cli) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage saved queries",
	}
	cmd.AddCommand(
		c.newQueryCreateCmd(),
		c.newQueryListCmd(),
		c.newQueryShowCmd(),
		c.newQueryExecuteCmd(),
		c.newQueryHarvestCmd(),
	)
	return cmd
}

func (c *cli) newQueryCreateCmd() *cobra.Command {
	in := createQueryInput{RetMax: domain.DefaultRetMax, User: os.Getenv("USER")}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save a new query",
		Example: `  ncbictl query create --db pubmed --term "asthma[mh] AND 2020[dp]" --retmax 500
  ncbictl query create --db pmc --term "crispr" --user alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.validate.Struct(in); err != nil {
				return fmt.Errorf("invalid query: %w", err)
			}
			db, err := domain.ParseDatabase(in.Database)
			if err != nil {
				return err
			}
			query, err := domain.NewQuery(in.User, in.Term, db, in.RetMax)
			if err != nil {
				return err
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Repos.Queries.Create(cmd.Context(), query); err != nil {
				return fmt.Errorf("create query: %w", err)
			}
			return c.printQueries([]queryView{newQueryView(query)}, 1)
		},
	}

	cmd.Flags().StringVar(&in.Database, "db", "", "database to search (pubmed, pmc)")
	cmd.Flags().StringVar(&in.Term, "term", "", "E-utilities search term")
	cmd.Flags().IntVar(&in.RetMax, "retmax", in.RetMax, "maximum number of identifiers to keep")
	cmd.Flags().StringVar(&in.User, "user", in.User, "owner recorded on the query")
	return cmd
}

func (c *cli) newQueryListCmd() *cobra.Command {
	var (
		dbName   string
		user     string
		executed string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repository.QueryFilter{CreatedBy: user, Limit: limit, Offset: offset}
			if dbName != "" {
				db, err := domain.ParseDatabase(dbName)
				if err != nil {
					return err
				}
				filter.Database = &db
			}
			if executed != "" {
				v, err := strconv.ParseBool(executed)
				if err != nil {
					return fmt.Errorf("invalid --executed value %q", executed)
				}
				filter.Executed = &v
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			queries, total, err := a.Repos.Queries.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list queries: %w", err)
			}
			views := make([]queryView, 0, len(queries))
			for _, q := range queries {
				views = append(views, newQueryView(q))
			}
			return c.printQueries(views, total)
		},
	}

	cmd.Flags().StringVar(&dbName, "db", "", "only queries against this database")
	cmd.Flags().StringVar(&user, "user", "", "only queries created by this user")
	cmd.Flags().StringVar(&executed, "executed", "", "filter by execution state (true, false)")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func (c *cli) newQueryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a query and the papers it returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUUIDs(args)
			if err != nil {
				return err
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			query, err := a.Repos.Queries.Get(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			queryID := query.ID
			papers, total, err := a.Repos.Papers.List(cmd.Context(), repository.PaperFilter{QueryID: &queryID, Limit: query.RetMax})
			if err != nil {
				return fmt.Errorf("list papers: %w", err)
			}

			paperViews := make([]paperView, 0, len(papers))
			for _, p := range papers {
				paperViews = append(paperViews, newPaperView(p))
			}
			if c.format == formatJSON {
				return c.printJSON(map[string]interface{}{"query": newQueryView(query), "papers": paperViews, "total": total})
			}
			if err := c.printQueries([]queryView{newQueryView(query)}, 1); err != nil {
				return err
			}
			fmt.Fprintln(c.out)
			return c.printPapers(paperViews, total)
		},
	}
}

func (c *cli) newQueryExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>...",
		Short: "Run queries against NCBI and store the returned identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUUIDs(args)
			if err != nil {
				return err
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := observability.WithUser(cmd.Context(), os.Getenv("USER"))
			outcomes, err := a.Pipeline.ExecuteQueries(ctx, ids)
			views := queryOutcomeViews(outcomes)
			if printErr := c.printOutcomes(views); printErr != nil {
				return printErr
			}
			if err != nil {
				return err
			}
			return failedOutcomes(views)
		},
	}
}

func (c *cli) newQueryHarvestCmd() *cobra.Command {
	var cancel bool

	cmd := &cobra.Command{
		Use:   "harvest <id>",
		Short: "Start a durable harvest that executes a query and retrieves all its papers",
		Long: `harvest hands a query to the Temporal worker. The worker executes the query
and then retrieves every returned paper, retrying each one on its own.

The command returns as soon as the workflow has started.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUUIDs(args)
			if err != nil {
				return err
			}
			if !c.cfg.Temporal.Enabled {
				return errors.New("temporal is not enabled in the configuration")
			}

			clientCfg := app.TemporalClientConfig(c.cfg.Temporal, c.logger)
			tc, err := temporal.NewClient(clientCfg)
			if err != nil {
				return err
			}
			harvests := temporal.NewHarvestClient(tc, clientCfg)
			defer harvests.Close()

			ctx := observability.WithUser(cmd.Context(), os.Getenv("USER"))
			return c.runHarvest(ctx, harvests, ids[0], cancel)
		},
	}

	cmd.Flags().BoolVar(&cancel, "cancel", false, "cancel a running harvest instead of starting one")
	return cmd
}

// harvester starts and cancels harvest workflows. *temporal.HarvestClient
// satisfies it.
type harvester interface {
	StartHarvest(ctx context.Context, queryID uuid.UUID) (workflowID, runID string, err error)
	CancelHarvest(ctx context.Context, queryID uuid.UUID) error
}

func (c *cli) runHarvest(ctx context.Context, h harvester, queryID uuid.UUID, cancel bool) error {
	if cancel {
		err := h.CancelHarvest(ctx, queryID)
		switch {
		case temporal.IsWorkflowNotFound(err):
			return fmt.Errorf("no harvest of query %s is running", queryID)
		case temporal.IsConnectionFailed(err):
			return fmt.Errorf("temporal at %s is unreachable: %w", c.cfg.Temporal.HostPort, err)
		case err != nil:
			return err
		}
		_, err = fmt.Fprintf(c.out, "cancelled %s\n", temporal.HarvestWorkflowID(queryID))
		return err
	}

	workflowID, runID, err := h.StartHarvest(ctx, queryID)
	switch {
	case temporal.IsWorkflowAlreadyStarted(err):
		return fmt.Errorf("a harvest of query %s is already running", queryID)
	case temporal.IsConnectionFailed(err):
		return fmt.Errorf("temporal at %s is unreachable: %w", c.cfg.Temporal.HostPort, err)
	case err != nil:
		return err
	}
	if c.format == formatJSON {
		return c.printJSON(map[string]string{"workflow_id": workflowID, "run_id": runID})
	}
	_, err = fmt.Fprintf(c.out, "started %s (run %s)\n", workflowID, runID)
	return err
}

// parseUUIDs parses every argument or reports the first malformed one.
func parseUUIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// failedOutcomes turns per-item failures into a non-zero exit.
func failedOutcomes(views []outcomeView) error {
	failed := 0
	for _, v := range views {
		if v.Status == "failed" {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d failed", failed, len(views))
}
