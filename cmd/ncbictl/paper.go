package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/repository"
)

func (c *cli) newPaperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Inspect and retrieve papers",
	}
	cmd.AddCommand(
		c.newPaperListCmd(),
		c.newPaperShowCmd(),
		c.newPaperRetrieveCmd(),
	)
	return cmd
}

func (c *cli) newPaperListCmd() *cobra.Command {
	var (
		queryID   string
		source    string
		retrieved string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored papers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := repository.PaperFilter{Limit: limit, Offset: offset}
			if queryID != "" {
				ids, err := parseUUIDs([]string{queryID})
				if err != nil {
					return err
				}
				filter.QueryID = &ids[0]
			}
			if source != "" {
				db, err := domain.ParseDatabase(source)
				if err != nil {
					return err
				}
				filter.Source = &db
			}
			if retrieved != "" {
				v, err := strconv.ParseBool(retrieved)
				if err != nil {
					return fmt.Errorf("invalid --retrieved value %q", retrieved)
				}
				filter.Retrieved = &v
			}

			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			papers, total, err := a.Repos.Papers.List(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("list papers: %w", err)
			}
			views := make([]paperView, 0, len(papers))
			for _, p := range papers {
				views = append(views, newPaperView(p))
			}
			return c.printPapers(views, total)
		},
	}

	cmd.Flags().StringVar(&queryID, "query", "", "only papers returned by this query")
	cmd.Flags().StringVar(&source, "source", "", "only papers from this database")
	cmd.Flags().StringVar(&retrieved, "retrieved", "", "filter by retrieval state (true, false)")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

func (c *cli) newPaperShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a paper with its journal, authors, MeSH headings and grants",
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

			detail, err := a.Repos.Papers.GetDetail(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			return c.printPaperDetail(newPaperDetailView(detail))
		},
	}
}

func (c *cli) printPaperDetail(v paperDetailView) error {
	if c.format == formatJSON {
		return c.printJSON(v)
	}
	rows := [][]string{
		{"ID", v.ID.String()},
		{"Source", v.Source + ":" + v.Identifier},
		{"Title", v.Title},
		{"Published", v.PubDate},
		{"Journal", v.Journal},
		{"Retrieved", strconv.FormatBool(v.Retrieved)},
		{"Authors", strings.Join(v.Authors, "; ")},
		{"MeSH", strings.Join(v.MeSH, "; ")},
		{"Grants", strings.Join(v.Grants, "; ")},
	}
	if err := c.printTable([]string{"FIELD", "VALUE"}, rows); err != nil {
		return err
	}
	if v.Abstract != "" {
		_, err := fmt.Fprintf(c.out, "\n%s\n", v.Abstract)
		return err
	}
	return nil
}

func (c *cli) newPaperRetrieveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retrieve <id>...",
		Short: "Fetch full metadata for papers from NCBI",
		Long:  "retrieve fetches each paper and stores its journal, authors, affiliations, MeSH headings and grants. Papers already retrieved are skipped.",
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

			outcomes, err := a.Pipeline.RetrievePapers(cmd.Context(), ids)
			views := paperOutcomeViews(outcomes)
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
