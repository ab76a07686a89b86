package metrics

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/runmetrics/runmetrics/internal/olap"
)

var granularityPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// Granularity unit letters.
const (
	UnitSecond = "s"
	UnitMinute = "m"
	UnitHour   = "h"
	UnitDay    = "d"
)

// DefaultGranularity is used when a request does not name one.
const DefaultGranularity = "1h"

// Granularity is a parsed bucket width such as "15m".
type Granularity struct {
	Amount int
	Unit   string
}

// ParseGranularity parses s. The amount is kept but only the unit decides
// the bucket; see Collapsed.
func ParseGranularity(s string) (Granularity, error) {
	m := granularityPattern.FindStringSubmatch(s)
	if m == nil {
		return Granularity{}, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}

	// Amounts too large for an int still match; they saturate since only
	// the unit picks the bucket.
	amount, err := strconv.Atoi(m[1])
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return Granularity{}, fmt.Errorf("%w: %q: %v", ErrInvalidGranularity, s, err)
		}
		amount = math.MaxInt
	}

	return Granularity{Amount: amount, Unit: m[2]}, nil
}

func (g Granularity) String() string {
	return fmt.Sprintf("%d%s", g.Amount, g.Unit)
}

// Bucket returns the truncation unit for g: seconds and minutes bucket by
// minute, hours by hour, days by day.
func (g Granularity) Bucket() olap.TimeUnit {
	switch g.Unit {
	case UnitHour:
		return olap.Hour
	case UnitDay:
		return olap.Day
	default:
		return olap.Minute
	}
}

// BucketExpression renders the truncation of column for dialect d.
func (g Granularity) BucketExpression(d olap.Dialect, column string) string {
	return d.StartOf(g.Bucket(), column)
}

// Effective returns the granularity the bucket expression actually
// produces: 1m, 1h or 1d.
func (g Granularity) Effective() Granularity {
	switch g.Bucket() {
	case olap.Hour:
		return Granularity{Amount: 1, Unit: UnitHour}
	case olap.Day:
		return Granularity{Amount: 1, Unit: UnitDay}
	default:
		return Granularity{Amount: 1, Unit: UnitMinute}
	}
}

// Collapsed reports whether the requested width differs from the bucket
// that is used, e.g. "15m" and "30s" both bucket by minute.
func (g Granularity) Collapsed() bool {
	return g != g.Effective()
}
