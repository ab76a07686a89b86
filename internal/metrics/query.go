package metrics

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/runmetrics/runmetrics/internal/olap"
)

// Queries composes metric queries against one client.
type Queries struct {
	client *olap.Client
	logger zerolog.Logger
}

// NewQueries creates a query composer.
func NewQueries(client *olap.Client, logger zerolog.Logger) *Queries {
	return &Queries{
		client: client,
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// CreateQuery composes the bucketed aggregation for p. Filters are applied
// in a fixed order: tenant scope, soft delete, start, end, task, status,
// queue. Without a rollup the value is a row count, and without both a
// rollup and a group-by column rows are labelled by task identifier.
func (q *Queries) CreateQuery(name string, p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	g, err := ParseGranularity(p.Granularity)
	if err != nil {
		return nil, err
	}
	if g.Collapsed() {
		q.logger.Warn().
			Str("query", name).
			Str("granularity", g.String()).
			Str("effective", g.Effective().String()).
			Msg("Granularity amount is not applied to bucketing")
	}

	d := q.client.Dialect()

	agg := d.CountRows()
	if p.Rollup != nil {
		agg, err = BuildAggregationExpression(d, p.Rollup.Type, p.Rollup.Column)
		if err != nil {
			return nil, err
		}
	}

	label := labelColumn(p)

	columns := []string{
		g.BucketExpression(d, ColumnCreatedAt) + " AS bucket",
		d.ToFloat(agg) + " AS value",
	}
	groupBy := []string{"bucket"}
	if label != "" {
		columns = append(columns, d.ToString(label)+" AS label")
		groupBy = append(groupBy, "label")
	}

	base := fmt.Sprintf("SELECT %s FROM %s", strings.Join(columns, ", "), d.From(TaskRunsTable, true))

	b := olap.NewQueryBuilder[MetricRow](q.client, name, base, nil).
		Where(ColumnOrganizationID+" = ?", p.OrganizationID).
		Where(ColumnProjectID+" = ?", p.ProjectID).
		Where(ColumnEnvironmentID+" = ?", p.EnvironmentID).
		Where(ColumnIsDeleted + " = 0").
		Where(ColumnCreatedAt+" >= ?", p.StartTime)
	if p.EndTime != nil {
		b.Where(ColumnCreatedAt+" <= ?", *p.EndTime)
	}

	return b.
		Eq(ColumnTaskIdentifier, p.Filters.TaskIdentifier).
		Eq(ColumnStatus, p.Filters.Status).
		Eq(ColumnQueue, p.Filters.Queue).
		GroupBy(groupBy...).
		OrderBy("bucket"), nil
}

func labelColumn(p MetricQueryParams) string {
	if p.GroupBy != "" {
		return p.GroupBy
	}
	if p.Rollup == nil {
		return ColumnTaskIdentifier
	}
	return ""
}

// Grouped reports whether rows for p carry a label.
func Grouped(p MetricQueryParams) bool {
	return labelColumn(p) != ""
}
