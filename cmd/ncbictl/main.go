// Package main is the operator CLI of the NCBI query service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	configPath string
	format     string
	verbose    bool

	out      io.Writer
	cfg      *config.Config
	logger   zerolog.Logger
	validate *validator.Validate
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{
		out:      out,
		logger:   zerolog.Nop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	root := &cobra.Command{
		Use:   "ncbictl",
		Short: "Operate the NCBI query service",
		Long: `ncbictl manages saved PubMed and PMC queries and the papers they return.

It talks to the same PostgreSQL database and NCBI E-utilities endpoint as the
server, using the same configuration file and NCBIQS_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
	}
	root.SetOut(out)
	root.SetErr(os.Stderr)

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./config.yaml or /etc/ncbi-query-service/config.yaml)")
	root.PersistentFlags().StringVarP(&c.format, "output", "o", formatTable, "output format (table, json)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		c.newQueryCmd(),
		c.newPaperCmd(),
		c.newSearchCmd(),
		c.newEventsCmd(),
		c.newMigrateCmd(),
	)
	return root
}

// load reads the configuration and sets up the stderr logger.
func (c *cli) load() error {
	if c.format != formatTable && c.format != formatJSON {
		return fmt.Errorf("unsupported output format %q", c.format)
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := "warn"
	if c.verbose {
		level = "debug"
	}
	c.logger = observability.NewLogger(observability.LoggingConfig{
		Level:      level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "ncbictl").Logger()
	return nil
}

// openApp connects to the database and builds the pipeline.
func (c *cli) openApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.cfg, c.logger, nil)
}
