// Package cli assembles the runmetrics command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/cli/db"
	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/cli/query"
	"github.com/runmetrics/runmetrics/internal/cli/runs"
	"github.com/runmetrics/runmetrics/internal/cli/serve"
	"github.com/runmetrics/runmetrics/internal/cli/token"
	"github.com/runmetrics/runmetrics/pkg/version"
)

// NewRootCmd builds the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runmetrics",
		Short: "Time-bucketed task run metrics",
		Long: `Query task run metrics bucketed over time.

Metrics are aggregated from the task_runs_v2 table in ClickHouse (or an
embedded DuckDB file for local use) and served over an HTTP API scoped to
an organization, project and environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	helpers.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(query.NewQueryCmd())
	rootCmd.AddCommand(token.NewTokenCmd())
	rootCmd.AddCommand(db.NewDBCmd())
	rootCmd.AddCommand(runs.NewRunsCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("runmetrics version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
