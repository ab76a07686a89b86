package metrics

import (
	"fmt"
	"time"
)

// Filters are optional exact-match filters. Empty fields are not applied.
type Filters struct {
	TaskIdentifier string `json:"taskIdentifier,omitempty"`
	Status         string `json:"status,omitempty"`
	Queue          string `json:"queue,omitempty"`
}

// MetricQueryParams describes one metric query.
type MetricQueryParams struct {
	OrganizationID string
	ProjectID      string
	EnvironmentID  string

	StartTime time.Time
	// EndTime is optional; nil leaves the range open.
	EndTime *time.Time

	Granularity string
	Filters     Filters
	// GroupBy is an optional column used as the series label.
	GroupBy string
	Rollup  *RollupSpec
}

// Validate checks the parts of p that do not depend on the engine.
func (p MetricQueryParams) Validate() error {
	switch {
	case p.OrganizationID == "":
		return fmt.Errorf("%w: organization id is required", ErrInvalidParams)
	case p.ProjectID == "":
		return fmt.Errorf("%w: project id is required", ErrInvalidParams)
	case p.EnvironmentID == "":
		return fmt.Errorf("%w: environment id is required", ErrInvalidParams)
	case p.StartTime.IsZero():
		return fmt.Errorf("%w: start time is required", ErrInvalidParams)
	case p.EndTime != nil && p.EndTime.Before(p.StartTime):
		return fmt.Errorf("%w: end time %s is before start time %s", ErrInvalidParams,
			p.EndTime.Format(time.RFC3339), p.StartTime.Format(time.RFC3339))
	case p.GroupBy != "" && !safeIdentifier.MatchString(p.GroupBy):
		return fmt.Errorf("%w: invalid group by column %q", ErrInvalidParams, p.GroupBy)
	}
	return nil
}

// MetricRow is one row of a composed query.
type MetricRow struct {
	Bucket time.Time `ch:"bucket"`
	Value  float64   `ch:"value"`
	Label  string    `ch:"label"`
}

// MetricResult is a named metric with its data points in bucket order.
type MetricResult struct {
	Metric      string            `json:"metric"`
	Granularity string            `json:"granularity"`
	Data        []MetricDataPoint `json:"data"`
}

// MetricDataPoint is a single bucket value. Label is set for grouped
// queries only.
type MetricDataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Label     *string   `json:"label,omitempty"`
}
