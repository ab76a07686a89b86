// Package runs implements 'runmetrics runs' for loading task runs into the
// analytical store.
package runs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/errors"
	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/olap"
)

// NewRunsCmd creates the runs command and its subcommands.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Load task runs",
	}

	cmd.AddCommand(newImportCmd())

	return cmd
}

func newImportCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import task runs from JSON Lines",
		Long: `Import task runs from a JSON Lines file, one run per line, with the
task_runs_v2 column names as keys:

  {"run_id":"run_1","organization_id":"org_1","project_id":"proj_1",
   "environment_id":"env_1","task_identifier":"send-email","status":"COMPLETED",
   "queue":"default","created_at":"2024-01-01T10:05:00Z",
   "usage_duration_ms":120,"cost_in_cents":0.4}

Runs that already exist are replaced. Use '-' to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if batchSize < 1 {
				return fmt.Errorf("--batch-size must be positive")
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer errors.DeferClose(logger, f, "failed to close input")
				in = f
			}

			runs, err := metrics.ReadRuns(in)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			client, err := olap.Open(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, client, "failed to close database")

			for start := 0; start < len(runs); start += batchSize {
				end := min(start+batchSize, len(runs))
				if err := metrics.InsertRuns(ctx, client, runs[start:end]); err != nil {
					return err
				}
				logger.Debug().Int("imported", end).Int("total", len(runs)).Msg("Batch written")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d runs\n", len(runs))
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 10000, "Runs written per transaction")

	return cmd
}
