package metrics

import (
	"fmt"
	"sort"

	"github.com/runmetrics/runmetrics/internal/olap"
)

// Metric kinds served by ByKind.
const (
	KindDynamic             = "dynamic"
	KindCustom              = "custom"
	KindTaskRunCount        = "task_run_count"
	KindTaskRunDuration     = "task_run_duration"
	KindTaskRunCost         = "task_run_cost"
	KindTaskRunStatusCounts = "task_run_status_counts"
)

type presetFunc func(q *Queries, p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error)

var presets = map[string]presetFunc{
	KindDynamic:             (*Queries).GetDynamic,
	KindCustom:              (*Queries).GetCustom,
	KindTaskRunCount:        (*Queries).GetTaskRunCount,
	KindTaskRunDuration:     (*Queries).GetTaskRunDuration,
	KindTaskRunCost:         (*Queries).GetTaskRunCost,
	KindTaskRunStatusCounts: (*Queries).GetTaskRunStatusCounts,
}

// Kinds returns the registered metric kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(presets))
	for k := range presets {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ByKind builds the preset query registered under kind.
func (q *Queries) ByKind(kind string, p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	fn, ok := presets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return fn(q, p)
}

// ApplyPreset returns p as the preset for kind will query it. Callers use it
// to know whether the result is labelled.
func ApplyPreset(kind string, p MetricQueryParams) MetricQueryParams {
	switch kind {
	case KindTaskRunCount:
		p.Rollup = &RollupSpec{Type: RollupCount, Column: AllColumns}
	case KindTaskRunDuration:
		p.Rollup = &RollupSpec{Type: RollupAvg, Column: ColumnUsageDurationMs}
	case KindTaskRunCost:
		p.Rollup = &RollupSpec{Type: RollupSum, Column: ColumnCostInCents}
	case KindTaskRunStatusCounts:
		p.Rollup = &RollupSpec{Type: RollupCount, Column: AllColumns}
		p.GroupBy = ColumnStatus
	}
	return p
}

// GetDynamic queries p as given. Without a rollup it counts runs per task.
func (q *Queries) GetDynamic(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	return q.CreateQuery(KindDynamic, p)
}

// GetCustom is GetDynamic with a mandatory rollup.
func (q *Queries) GetCustom(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	if p.Rollup == nil {
		return nil, ErrMissingRollup
	}
	return q.CreateQuery(KindCustom, p)
}

// GetTaskRunCount counts runs per bucket. Any rollup in p is replaced.
func (q *Queries) GetTaskRunCount(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	return q.CreateQuery(KindTaskRunCount, ApplyPreset(KindTaskRunCount, p))
}

// GetTaskRunDuration averages usage_duration_ms per bucket.
func (q *Queries) GetTaskRunDuration(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	return q.CreateQuery(KindTaskRunDuration, ApplyPreset(KindTaskRunDuration, p))
}

// GetTaskRunCost sums cost_in_cents per bucket.
func (q *Queries) GetTaskRunCost(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	return q.CreateQuery(KindTaskRunCost, ApplyPreset(KindTaskRunCost, p))
}

// GetTaskRunStatusCounts counts runs per bucket and status.
func (q *Queries) GetTaskRunStatusCounts(p MetricQueryParams) (*olap.QueryBuilder[MetricRow], error) {
	return q.CreateQuery(KindTaskRunStatusCounts, ApplyPreset(KindTaskRunStatusCounts, p))
}
