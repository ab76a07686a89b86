// Package presenter shapes metric query results for API and CLI callers.
package presenter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/runmetrics/runmetrics/internal/metrics"
)

// MetricRequest names a metric kind and the parameters to query it with.
type MetricRequest struct {
	Kind   string
	Params metrics.MetricQueryParams
}

// MetricsPresenter builds, runs and converts metric queries.
type MetricsPresenter struct {
	queries *metrics.Queries
	logger  zerolog.Logger
}

// NewMetricsPresenter creates a presenter over queries.
func NewMetricsPresenter(queries *metrics.Queries, logger zerolog.Logger) *MetricsPresenter {
	return &MetricsPresenter{
		queries: queries,
		logger:  logger.With().Str("component", "presenter").Logger(),
	}
}

// Call runs the request. Errors from building the query (bad input,
// unknown kind) are returned as is; execution errors are wrapped.
func (p *MetricsPresenter) Call(ctx context.Context, req MetricRequest) (*metrics.MetricResult, error) {
	b, err := p.queries.ByKind(req.Kind, req.Params)
	if err != nil {
		return nil, err
	}
	g, err := metrics.ParseGranularity(req.Params.Granularity)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := b.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", req.Kind, err)
	}

	result := &metrics.MetricResult{
		Metric:      req.Kind,
		Granularity: g.Effective().String(),
		Data:        toDataPoints(rows, metrics.Grouped(metrics.ApplyPreset(req.Kind, req.Params))),
	}

	p.logger.Debug().
		Str("kind", req.Kind).
		Str("organization_id", req.Params.OrganizationID).
		Int("points", len(result.Data)).
		Dur("duration", time.Since(start)).
		Msg("Metric query served")

	return result, nil
}

func toDataPoints(rows []metrics.MetricRow, grouped bool) []metrics.MetricDataPoint {
	points := make([]metrics.MetricDataPoint, 0, len(rows))
	for _, row := range rows {
		point := metrics.MetricDataPoint{
			Timestamp: row.Bucket.UTC(),
			Value:     row.Value,
		}
		if grouped {
			label := row.Label
			point.Label = &label
		}
		points = append(points, point)
	}
	return points
}
