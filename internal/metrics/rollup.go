package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/runmetrics/runmetrics/internal/olap"
)

// RollupType is the aggregation applied inside each time bucket.
type RollupType string

const (
	RollupCount    RollupType = "count"
	RollupSum      RollupType = "sum"
	RollupAvg      RollupType = "avg"
	RollupMin      RollupType = "min"
	RollupMax      RollupType = "max"
	RollupDistinct RollupType = "distinct"
)

// AllColumns is the wildcard accepted by count.
const AllColumns = "*"

var safeIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RollupTypes lists the supported rollup types.
func RollupTypes() []RollupType {
	return []RollupType{RollupCount, RollupSum, RollupAvg, RollupMin, RollupMax, RollupDistinct}
}

// RollupSpec pairs a rollup type with its target column.
type RollupSpec struct {
	Type   RollupType `json:"type" yaml:"type" jsonschema:"enum=count,enum=sum,enum=avg,enum=min,enum=max,enum=distinct"`
	Column string     `json:"column" yaml:"column" jsonschema:"minLength=1"`
}

// ParseRollup parses the "type:column" form used on the command line and in
// query strings. A bare "count" means count of all rows.
func ParseRollup(s string) (*RollupSpec, error) {
	typ, column, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		if RollupType(typ) != RollupCount {
			return nil, fmt.Errorf("%w: %q must be type:column", ErrInvalidRollup, s)
		}
		column = AllColumns
	}

	spec := &RollupSpec{Type: RollupType(typ), Column: column}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks the type and column without rendering SQL.
func (r RollupSpec) Validate() error {
	_, err := BuildAggregationExpression(olap.ClickHouse, r.Type, r.Column)
	return err
}

func (r RollupSpec) String() string {
	return fmt.Sprintf("%s:%s", r.Type, r.Column)
}

// BuildAggregationExpression maps a rollup to an aggregate over column.
// count over "*" counts rows, count over a column counts its non-null
// values, distinct is approximate. Whether the column exists or is numeric
// is left to the engine.
func BuildAggregationExpression(d olap.Dialect, typ RollupType, column string) (string, error) {
	if column == "" {
		return "", fmt.Errorf("%w: %s needs a column", ErrInvalidRollup, typ)
	}
	if column == AllColumns {
		if typ != RollupCount {
			return "", fmt.Errorf("%w: %s does not accept %q", ErrInvalidRollup, typ, AllColumns)
		}
		return d.CountRows(), nil
	}
	if !safeIdentifier.MatchString(column) {
		return "", fmt.Errorf("%w: invalid column name %q", ErrInvalidRollup, column)
	}

	switch typ {
	case RollupCount:
		return d.Count(column), nil
	case RollupSum:
		return d.Aggregate(olap.Sum, column), nil
	case RollupAvg:
		return d.Aggregate(olap.Avg, column), nil
	case RollupMin:
		return d.Aggregate(olap.Min, column), nil
	case RollupMax:
		return d.Aggregate(olap.Max, column), nil
	case RollupDistinct:
		return d.ApproxDistinct(column), nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRollup, typ)
	}
}
