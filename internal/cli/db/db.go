// Package db implements 'runmetrics db'.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/errors"
	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/olap"
)

// NewDBCmd creates the db command and its subcommands.
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the analytical store",
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newPingCmd())

	return cmd
}

func newInitCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the task_runs_v2 table",
		Long: `Create the task_runs_v2 table if it does not exist.

With --print the DDL for the configured dialect is written to stdout
instead of being executed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if printOnly {
				dialect, err := olap.DialectFor(cfg.Database.Dialect)
				if err != nil {
					return err
				}
				for _, stmt := range metrics.SchemaDDL(dialect) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			client, err := olap.Open(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, client, "failed to close database")

			if err := metrics.EnsureSchema(ctx, client); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", client.Dialect().Name())
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the DDL instead of executing it")

	return cmd
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the analytical store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			client, err := olap.Open(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, client, "failed to close database")

			fmt.Fprintf(cmd.OutOrStdout(), "OK (%s)\n", client.Dialect().Name())
			return nil
		},
	}
}
