// Package olap is the client for the analytical store that holds task runs.
//
// Two dialects are supported: ClickHouse in production and an embedded
// DuckDB for local development and tests. Callers never write engine
// specific SQL directly; they ask the Dialect for expressions.
//
// # Query Builder
//
// NewQueryBuilder takes a name (used in logs and errors), a base SELECT
// statement, the result row type and optional engine settings. Filters,
// grouping and ordering are chained on top:
//
//	rows, err := olap.NewQueryBuilder[Row](client, "run_count", base, nil).
//	    Where("organization_id = ?", orgID).
//	    Eq("queue", queue).
//	    GroupBy("bucket").
//	    OrderBy("bucket").
//	    Execute(ctx)
//
// Row types map result columns with `ch:"column"` struct tags.
//
// Execute never panics on engine failures; it returns a *QueryError that
// carries the query name and the ID the engine saw.
package olap
