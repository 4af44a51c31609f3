package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/pipeline"
)

func (c *cli) newSearchCmd() *cobra.Command {
	var (
		retMax   int
		retStart int
	)

	cmd := &cobra.Command{
		Use:   "search <db> <term>...",
		Short: "Run a search against NCBI without storing anything",
		Example: `  ncbictl search pubmed "asthma[mh]" --retmax 20
  ncbictl search pmc crispr cas9 -o json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := domain.ParseDatabase(args[0])
			if err != nil {
				return err
			}
			params := domain.SearchParams{
				Query:      strings.Join(args[1:], " "),
				MaxResults: retMax,
				Offset:     retStart,
			}

			svc := pipeline.NewService(nil, app.NewRegistry(c.cfg.NCBI, nil), c.logger)
			result, err := svc.Search(cmd.Context(), db, params)
			if err != nil {
				return err
			}

			if c.format == formatJSON {
				return c.printJSON(map[string]interface{}{
					"database":    db.String(),
					"term":        params.Query,
					"identifiers": result.Identifiers,
					"total":       result.TotalCount,
				})
			}
			for _, id := range result.Identifiers {
				fmt.Fprintln(c.out, id)
			}
			_, err = fmt.Fprintf(c.out, "%d of %d total\n", len(result.Identifiers), result.TotalCount)
			return err
		},
	}

	cmd.Flags().IntVar(&retMax, "retmax", 20, "maximum number of identifiers")
	cmd.Flags().IntVar(&retStart, "retstart", 0, "index of the first identifier")
	return cmd
}
