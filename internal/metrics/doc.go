// Package metrics turns task-run metric requests into time-bucketed
// aggregation queries over the task_runs_v2 table.
//
// A request names a tenant scope, a time range, a granularity token such as
// "15m" or "1d", optional exact-match filters, an optional group-by column
// and an optional rollup. CreateQuery composes those into an
// olap.QueryBuilder whose rows are MetricRow values:
//
//	q := metrics.NewQueries(client, logger)
//	b, err := q.CreateQuery("durations", metrics.MetricQueryParams{
//		OrganizationID: "org_1",
//		ProjectID:      "proj_1",
//		EnvironmentID:  "env_1",
//		StartTime:      time.Now().Add(-24 * time.Hour),
//		Granularity:    "1h",
//		Rollup:         &metrics.RollupSpec{Type: metrics.RollupAvg, Column: "usage_duration_ms"},
//	})
//	if err != nil {
//		return err
//	}
//	rows, err := b.Execute(ctx)
package metrics
