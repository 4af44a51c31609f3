package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/helixir/ncbi-query-service/internal/app"
	"github.com/helixir/ncbi-query-service/internal/database"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default: database.migration_path)")

	run := func(cmd *cobra.Command, req app.MigrationRequest) error {
		req.Path = path
		version, err := app.Migrate(cmd.Context(), c.cfg, req, c.logger)
		if err != nil {
			return err
		}
		return c.printSchemaVersion(version)
	}

	intArg := func(name, value string) (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, value)
		}
		return n, nil
	}

	var yes bool
	drop := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("drop deletes all data; pass --yes to confirm")
			}
			return run(cmd, app.MigrationRequest{Action: app.MigrateDrop})
		},
	}
	drop.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, app.MigrationRequest{Action: app.MigrateUp})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, app.MigrationRequest{Action: app.MigrateDown})
			},
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations, or roll back when n is negative",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := intArg("step count", args[0])
				if err != nil {
					return err
				}
				return run(cmd, app.MigrationRequest{Action: app.MigrateSteps, N: n})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, app.MigrationRequest{Action: app.MigrateVersion})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := intArg("version", args[0])
				if err != nil {
					return err
				}
				return run(cmd, app.MigrationRequest{Action: app.MigrateForce, N: n})
			},
		},
		drop,
	)
	return cmd
}

func (c *cli) printSchemaVersion(v database.SchemaVersion) error {
	if c.format == formatJSON {
		return c.printJSON(map[string]interface{}{"version": v.Version, "dirty": v.Dirty, "applied": v.Applied})
	}
	_, err := fmt.Fprintf(c.out, "schema version %s\n", v)
	return err
}
