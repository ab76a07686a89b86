package httpapi

import (
	"fmt"
	"net/url"
	"time"

	"github.com/runmetrics/runmetrics/internal/auth"
	"github.com/runmetrics/runmetrics/internal/metrics"
)

// DefaultLookback is the range queried when a request has no start time. It
// ends at the requested end time, or now when that is open.
const DefaultLookback = 24 * time.Hour

// QueryRequest is the body of POST /api/v1/metrics/query. The tenant scope
// always comes from the caller's token.
type QueryRequest struct {
	Kind        string              `json:"kind" jsonschema:"required,description=Metric kind such as task_run_count"`
	From        *time.Time          `json:"from,omitempty" jsonschema:"description=Start of the range (RFC3339). Defaults to 24h before to or now"`
	To          *time.Time          `json:"to,omitempty" jsonschema:"description=End of the range (RFC3339). Open when omitted"`
	Granularity string              `json:"granularity,omitempty" jsonschema:"pattern=^[0-9]+[smhd]$,default=1h"`
	Filters     metrics.Filters     `json:"filters,omitempty"`
	GroupBy     string              `json:"groupBy,omitempty" jsonschema:"pattern=^[a-zA-Z_][a-zA-Z0-9_]*$"`
	Rollup      *metrics.RollupSpec `json:"rollup,omitempty"`
}

// Params converts the body into query parameters bound to scope.
func (q QueryRequest) Params(scope auth.Scope, now time.Time) metrics.MetricQueryParams {
	p := metrics.MetricQueryParams{
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		EnvironmentID:  scope.EnvironmentID,
		StartTime:      now.Add(-DefaultLookback),
		EndTime:        q.To,
		Granularity:    q.Granularity,
		Filters:        q.Filters,
		GroupBy:        q.GroupBy,
		Rollup:         q.Rollup,
	}
	switch {
	case q.From != nil:
		p.StartTime = *q.From
	case q.To != nil:
		p.StartTime = q.To.Add(-DefaultLookback)
	}
	if p.Granularity == "" {
		p.Granularity = metrics.DefaultGranularity
	}
	return p
}

// paramsFromQuery reads query parameters from the URL query string.
func paramsFromQuery(values url.Values, scope auth.Scope, now time.Time) (metrics.MetricQueryParams, error) {
	req := QueryRequest{
		Granularity: values.Get("granularity"),
		Filters: metrics.Filters{
			TaskIdentifier: values.Get("task"),
			Status:         values.Get("status"),
			Queue:          values.Get("queue"),
		},
		GroupBy: values.Get("groupBy"),
	}

	if s := values.Get("from"); s != "" {
		from, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return metrics.MetricQueryParams{}, fmt.Errorf("%w: invalid from: %v", metrics.ErrInvalidParams, err)
		}
		req.From = &from
	}

	if s := values.Get("to"); s != "" {
		to, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return metrics.MetricQueryParams{}, fmt.Errorf("%w: invalid to: %v", metrics.ErrInvalidParams, err)
		}
		req.To = &to
	}

	if s := values.Get("rollup"); s != "" {
		rollup, err := metrics.ParseRollup(s)
		if err != nil {
			return metrics.MetricQueryParams{}, err
		}
		req.Rollup = rollup
	}

	return req.Params(scope, now), nil
}
