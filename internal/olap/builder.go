package olap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runmetrics/runmetrics/internal/errors"
)

// QueryBuilder accumulates filters, grouping and ordering on top of a base
// SELECT statement and executes the result, scanning rows into T.
type QueryBuilder[T any] struct {
	client   *Client
	name     string
	baseSQL  string
	settings Settings

	where   []whereClause
	groupBy []string
	orderBy []orderClause
	limit   int
}

type whereClause struct {
	expr string
	args []any
}

type orderClause struct {
	column string
	desc   bool
}

// NewQueryBuilder starts a query named name from baseSQL, which must be a
// SELECT ... FROM ... statement without WHERE, GROUP BY or ORDER BY.
// settings may be nil.
func NewQueryBuilder[T any](client *Client, name, baseSQL string, settings Settings) *QueryBuilder[T] {
	return &QueryBuilder[T]{
		client:   client,
		name:     name,
		baseSQL:  strings.TrimSpace(baseSQL),
		settings: settings,
	}
}

// Name returns the query name.
func (b *QueryBuilder[T]) Name() string {
	return b.name
}

// Where adds a condition. Conditions are joined with AND in call order.
func (b *QueryBuilder[T]) Where(expr string, args ...any) *QueryBuilder[T] {
	b.where = append(b.where, whereClause{expr: expr, args: args})
	return b
}

// WhereIf adds the condition only when cond is true.
func (b *QueryBuilder[T]) WhereIf(cond bool, expr string, args ...any) *QueryBuilder[T] {
	if !cond {
		return b
	}
	return b.Where(expr, args...)
}

// Eq adds column = ?. An empty string value skips the filter.
func (b *QueryBuilder[T]) Eq(column string, value any) *QueryBuilder[T] {
	if s, ok := value.(string); ok && s == "" {
		return b
	}
	return b.Where(column+" = ?", value)
}

// In adds column IN (?, ...). No values skips the filter.
func (b *QueryBuilder[T]) In(column string, values ...any) *QueryBuilder[T] {
	if len(values) == 0 {
		return b
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	return b.Where(fmt.Sprintf("%s IN (%s)", column, placeholders), values...)
}

// GroupBy adds GROUP BY columns.
func (b *QueryBuilder[T]) GroupBy(columns ...string) *QueryBuilder[T] {
	b.groupBy = append(b.groupBy, columns...)
	return b
}

// OrderBy adds ORDER BY columns. A "-" prefix sorts descending.
func (b *QueryBuilder[T]) OrderBy(columns ...string) *QueryBuilder[T] {
	for _, col := range columns {
		desc := strings.HasPrefix(col, "-")
		b.orderBy = append(b.orderBy, orderClause{column: strings.TrimPrefix(col, "-"), desc: desc})
	}
	return b
}

// Limit caps the number of rows. Zero means no limit.
func (b *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	b.limit = n
	return b
}

// Build renders the SQL and its positional arguments. It can be called any
// number of times.
func (b *QueryBuilder[T]) Build() (string, []any, error) {
	if b.baseSQL == "" {
		return "", nil, fmt.Errorf("query %s has no base statement", b.name)
	}

	var query strings.Builder
	args := make([]any, 0, len(b.where))

	query.WriteString(b.baseSQL)

	if len(b.where) > 0 {
		query.WriteString(" WHERE ")
		for i, w := range b.where {
			if i > 0 {
				query.WriteString(" AND ")
			}
			query.WriteString(w.expr)
			args = append(args, w.args...)
		}
	}

	if len(b.groupBy) > 0 {
		query.WriteString(" GROUP BY ")
		query.WriteString(strings.Join(b.groupBy, ", "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			if o.desc {
				parts[i] = o.column + " DESC"
			} else {
				parts[i] = o.column + " ASC"
			}
		}
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, b.limit)
	}

	return query.String(), args, nil
}

// Execute runs the query and scans every row into T. Failures are returned
// as *QueryError.
func (b *QueryBuilder[T]) Execute(ctx context.Context) ([]T, error) {
	query, args, err := b.Build()
	if err != nil {
		return nil, &QueryError{Name: b.name, Err: err}
	}

	schema, err := newRowSchema[T]()
	if err != nil {
		return nil, &QueryError{Name: b.name, Err: err}
	}

	queryID := uuid.NewString()
	logger := b.client.logger.With().
		Str("query", b.name).
		Str("query_id", queryID).
		Str("fingerprint", Fingerprint(query)).
		Logger()
	logger.Debug().Str("sql", InterpolateQuery(query, args)).Msg("Executing query")

	start := time.Now()
	ctx = b.client.dialect.WithQueryOptions(ctx, queryID, b.client.settings.Merge(b.settings))

	rows, err := b.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Warn().Err(err).Msg("Query failed")
		return nil, &QueryError{Name: b.name, QueryID: queryID, Err: err}
	}
	defer errors.DeferClose(logger, rows, "failed to close result rows")

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Name: b.name, QueryID: queryID, Err: err}
	}

	var result []T
	for rows.Next() {
		var row T
		if err := rows.Scan(schema.targets(&row, columns)...); err != nil {
			return nil, &QueryError{Name: b.name, QueryID: queryID, Err: fmt.Errorf("scan: %w", err)}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Name: b.name, QueryID: queryID, Err: err}
	}

	logger.Debug().
		Int("rows", len(result)).
		Dur("duration", time.Since(start)).
		Msg("Query finished")

	return result, nil
}
