package olap

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Dialect names.
const (
	DialectClickHouse = "clickhouse"
	DialectDuckDB     = "duckdb"
)

// TimeUnit is a truncation unit for time bucketing.
type TimeUnit int

const (
	Minute TimeUnit = iota
	Hour
	Day
)

// String returns the unit name.
func (u TimeUnit) String() string {
	switch u {
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return fmt.Sprintf("TimeUnit(%d)", int(u))
	}
}

// AggregateFunc is a plain SQL aggregate shared by both engines.
type AggregateFunc string

const (
	Sum AggregateFunc = "sum"
	Avg AggregateFunc = "avg"
	Min AggregateFunc = "min"
	Max AggregateFunc = "max"
)

// Settings are engine settings attached to a query.
type Settings map[string]any

// Merge returns a copy of s overlaid with other.
func (s Settings) Merge(other Settings) Settings {
	out := make(Settings, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Dialect renders the engine specific parts of a query.
type Dialect interface {
	Name() string
	// StartOf truncates a time column to the start of unit.
	StartOf(unit TimeUnit, column string) string
	// CountRows counts every row in the group.
	CountRows() string
	// Count counts non-null values of column.
	Count(column string) string
	Aggregate(fn AggregateFunc, column string) string
	// ApproxDistinct is an approximate count of distinct values.
	ApproxDistinct(column string) string
	ToFloat(expr string) string
	ToString(expr string) string
	// From renders the FROM target; final asks for deduplicated reads where
	// the engine supports it.
	From(table string, final bool) string
	// WithQueryOptions attaches the query ID and settings to ctx in the way
	// the driver expects them.
	WithQueryOptions(ctx context.Context, queryID string, settings Settings) context.Context
	// OnConflict is appended to an INSERT so rows with an existing key
	// replace the stored values. Empty when the engine dedups on its own.
	OnConflict(keys, updates []string) string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case DialectClickHouse:
		return ClickHouse, nil
	case DialectDuckDB:
		return DuckDB, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

var (
	// ClickHouse is the production dialect.
	ClickHouse Dialect = clickHouseDialect{}
	// DuckDB is the embedded dialect.
	DuckDB Dialect = duckDBDialect{}
)

type clickHouseDialect struct{}

func (clickHouseDialect) Name() string { return DialectClickHouse }

func (clickHouseDialect) StartOf(unit TimeUnit, column string) string {
	switch unit {
	case Hour:
		return fmt.Sprintf("toStartOfHour(%s)", column)
	case Day:
		return fmt.Sprintf("toStartOfDay(%s)", column)
	default:
		return fmt.Sprintf("toStartOfMinute(%s)", column)
	}
}

func (clickHouseDialect) CountRows() string { return "count()" }

func (clickHouseDialect) Count(column string) string { return fmt.Sprintf("count(%s)", column) }

func (clickHouseDialect) Aggregate(fn AggregateFunc, column string) string {
	return fmt.Sprintf("%s(%s)", fn, column)
}

func (clickHouseDialect) ApproxDistinct(column string) string {
	return fmt.Sprintf("uniq(%s)", column)
}

func (clickHouseDialect) ToFloat(expr string) string { return fmt.Sprintf("toFloat64(%s)", expr) }

func (clickHouseDialect) ToString(expr string) string { return fmt.Sprintf("toString(%s)", expr) }

func (clickHouseDialect) From(table string, final bool) string {
	if final {
		return table + " FINAL"
	}
	return table
}

func (clickHouseDialect) WithQueryOptions(ctx context.Context, queryID string, settings Settings) context.Context {
	opts := []clickhouse.QueryOption{clickhouse.WithQueryID(queryID)}
	if len(settings) > 0 {
		opts = append(opts, clickhouse.WithSettings(clickhouse.Settings(settings)))
	}
	return clickhouse.Context(ctx, opts...)
}

// OnConflict is empty: ReplacingMergeTree keeps the highest version per key
// at merge time and FINAL reads apply it early.
func (clickHouseDialect) OnConflict(_, _ []string) string { return "" }

type duckDBDialect struct{}

func (duckDBDialect) Name() string { return DialectDuckDB }

func (duckDBDialect) StartOf(unit TimeUnit, column string) string {
	return fmt.Sprintf("date_trunc('%s', %s)", unit, column)
}

func (duckDBDialect) CountRows() string { return "count(*)" }

func (duckDBDialect) Count(column string) string { return fmt.Sprintf("count(%s)", column) }

func (duckDBDialect) Aggregate(fn AggregateFunc, column string) string {
	return fmt.Sprintf("%s(%s)", fn, column)
}

func (duckDBDialect) ApproxDistinct(column string) string {
	return fmt.Sprintf("approx_count_distinct(%s)", column)
}

func (duckDBDialect) ToFloat(expr string) string { return fmt.Sprintf("CAST(%s AS DOUBLE)", expr) }

func (duckDBDialect) ToString(expr string) string { return fmt.Sprintf("CAST(%s AS VARCHAR)", expr) }

// From ignores final: DuckDB tables hold one row per key already.
func (duckDBDialect) From(table string, _ bool) string { return table }

// WithQueryOptions is a no-op; DuckDB has no per-query settings channel.
func (duckDBDialect) WithQueryOptions(ctx context.Context, _ string, _ Settings) context.Context {
	return ctx
}

func (duckDBDialect) OnConflict(keys, updates []string) string {
	if len(keys) == 0 {
		return ""
	}
	if len(updates) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(keys, ", "))
	}
	set := make([]string, len(updates))
	for i, col := range updates {
		set[i] = fmt.Sprintf("%s = excluded.%s", col, col)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(set, ", "))
}
