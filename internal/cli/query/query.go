// Package query implements 'runmetrics query', which runs a metric query
// directly against the analytical store.
package query

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/config"
	"github.com/runmetrics/runmetrics/internal/errors"
	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/olap"
	"github.com/runmetrics/runmetrics/internal/presenter"
)

type options struct {
	organizationID string
	projectID      string
	environmentID  string

	time        helpers.TimeFlags
	granularity string
	rollup      string
	groupBy     string
	filters     metrics.Filters

	format  string
	showSQL bool
}

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "query <kind>",
		Short: "Run a metric query",
		Long: `Run a metric query against the analytical store and print the buckets.

Kinds:
  ` + strings.Join(metrics.Kinds(), "\n  ") + `

The scope defaults to server.dev_scope from the config file.

Examples:
  # Runs per hour over the last day
  runmetrics query task_run_count --org org_1 --project proj_1 --env env_1

  # Average duration per day for one task
  runmetrics query task_run_duration --since 168h --granularity 1d --task send-email

  # Distinct queues per status
  runmetrics query custom --rollup distinct:queue --group-by status --format json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: metrics.Kinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}

			formatter, err := helpers.NewFormatter(helpers.OutputFormat(opts.format))
			if err != nil {
				return err
			}

			params, err := opts.params(cfg.Server.DevScope, time.Now().UTC())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			client, err := olap.Open(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, client, "failed to close database")

			queries := metrics.NewQueries(client, logger)

			if opts.showSQL {
				qb, err := queries.ByKind(args[0], params)
				if err != nil {
					return err
				}
				sqlText, sqlArgs, err := qb.Build()
				if err != nil {
					return err
				}
				cmd.PrintErrln(olap.InterpolateQuery(sqlText, sqlArgs))
			}

			result, err := presenter.NewMetricsPresenter(queries, logger).Call(ctx, presenter.MetricRequest{
				Kind:   args[0],
				Params: params,
			})
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), formatter, opts.format, result)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.organizationID, "org", "", "Organization ID")
	flags.StringVar(&opts.projectID, "project", "", "Project ID")
	flags.StringVar(&opts.environmentID, "env", "", "Environment ID")
	opts.time.AddFlags(flags)
	flags.StringVar(&opts.granularity, "granularity", metrics.DefaultGranularity, "Bucket size (e.g. 1m, 1h, 1d)")
	flags.StringVar(&opts.rollup, "rollup", "", "Aggregation as type:column (count, sum, avg, min, max, distinct)")
	flags.StringVar(&opts.groupBy, "group-by", "", "Column used as the series label")
	flags.StringVar(&opts.filters.TaskIdentifier, "task", "", "Filter by task identifier")
	flags.StringVar(&opts.filters.Status, "status", "", "Filter by run status")
	flags.StringVar(&opts.filters.Queue, "queue", "", "Filter by queue")
	flags.StringVarP(&opts.format, "format", "o", string(helpers.FormatTable), "Output format (table, json, csv)")
	flags.BoolVar(&opts.showSQL, "show-sql", false, "Print the generated SQL to stderr")

	return cmd
}

func (o *options) params(dev config.ScopeConfig, now time.Time) (metrics.MetricQueryParams, error) {
	tr, err := o.time.Parse(now)
	if err != nil {
		return metrics.MetricQueryParams{}, err
	}

	p := metrics.MetricQueryParams{
		OrganizationID: firstNonEmpty(o.organizationID, dev.OrganizationID),
		ProjectID:      firstNonEmpty(o.projectID, dev.ProjectID),
		EnvironmentID:  firstNonEmpty(o.environmentID, dev.EnvironmentID),
		StartTime:      tr.Start,
		EndTime:        &tr.End,
		Granularity:    o.granularity,
		Filters:        o.filters,
		GroupBy:        o.groupBy,
	}

	if o.rollup != "" {
		p.Rollup, err = metrics.ParseRollup(o.rollup)
		if err != nil {
			return metrics.MetricQueryParams{}, err
		}
	}

	return p, p.Validate()
}

type row struct {
	Timestamp time.Time `header:"BUCKET"`
	Label     string    `header:"LABEL"`
	Value     float64   `header:"VALUE"`
}

func render(w io.Writer, f helpers.Formatter, format string, result *metrics.MetricResult) error {
	if helpers.OutputFormat(format) == helpers.FormatJSON {
		return f.Format(result, w)
	}

	rows := make([]row, len(result.Data))
	for i, dp := range result.Data {
		rows[i] = row{Timestamp: dp.Timestamp, Value: dp.Value}
		if dp.Label != nil {
			rows[i].Label = *dp.Label
		}
	}

	if len(rows) == 0 && helpers.OutputFormat(format) == helpers.FormatTable {
		_, err := fmt.Fprintf(w, "No data for %s\n", result.Metric)
		return err
	}
	return f.Format(rows, w)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
