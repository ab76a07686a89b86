package olap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runmetrics/runmetrics/internal/errors"
	"github.com/runmetrics/runmetrics/internal/retry"
)

// Table writes rows of T into a table. Columns come from `ch` tags; columns
// tagged ",pk" form the key that later writes replace on. Columns tagged
// ",immutable" keep their first written value (DuckDB cannot update
// indexed columns on conflict).
type Table[T any] struct {
	client *Client
	name   string
	schema *rowSchema
}

// NewTable creates a writer for table name.
func NewTable[T any](client *Client, name string) (*Table[T], error) {
	schema, err := newRowSchema[T]()
	if err != nil {
		return nil, err
	}
	if len(schema.columns) == 0 {
		return nil, fmt.Errorf("row type %v has no ch columns", schema.typ)
	}
	return &Table[T]{client: client, name: name, schema: schema}, nil
}

// Columns returns the column list in insert order.
func (t *Table[T]) Columns() []string {
	return t.schema.columns
}

func (t *Table[T]) insertSQL() string {
	placeholders := make([]string, len(t.schema.columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	var updates []string
	isKey := make(map[string]bool, len(t.schema.keys))
	for _, k := range t.schema.keys {
		isKey[k] = true
	}
	for _, col := range t.schema.columns {
		if !isKey[col] && !t.schema.immutable[col] {
			updates = append(updates, col)
		}
	}

	// #nosec G201 - table and column names come from code, not input.
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.name,
		strings.Join(t.schema.columns, ", "),
		strings.Join(placeholders, ", "),
	) + t.client.dialect.OnConflict(t.schema.keys, updates)
}

// Upsert writes rows in one transaction through a prepared statement.
// ClickHouse sends them as a single block. Transaction conflicts are
// retried.
func (t *Table[T]) Upsert(ctx context.Context, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	query := t.insertSQL()
	start := time.Now()

	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
		Jitter:         0.1,
	}
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		return t.writeBatch(ctx, query, rows)
	}, isTransactionConflict)
	if err != nil {
		return fmt.Errorf("failed to write %d rows to %s: %w", len(rows), t.name, err)
	}

	t.client.logger.Debug().
		Str("table", t.name).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Rows written")
	return nil
}

func (t *Table[T]) writeBatch(ctx context.Context, query string, rows []T) (err error) {
	tx, err := t.client.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer errors.DeferClose(t.client.logger, stmt, "failed to close statement")

	for i := range rows {
		if _, err = stmt.ExecContext(ctx, t.schema.values(&rows[i])...); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Conflict on") ||
		strings.Contains(msg, "TransactionContext Error") ||
		strings.Contains(msg, "serialization")
}
