package testutil

import (
	"context"
	"testing"

	"github.com/runmetrics/runmetrics/internal/config"
	"github.com/runmetrics/runmetrics/internal/olap"
)

// NewTestClient opens an in-memory DuckDB client.
// The client is closed when the test completes.
func NewTestClient(t *testing.T) *olap.Client {
	t.Helper()

	ctx, cancel := NewTestContext()
	defer cancel()

	client, err := olap.Open(ctx, config.DatabaseConfig{
		Dialect:         olap.DialectDuckDB,
		ConnectAttempts: 1,
	}, NewTestLogger(t))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})

	return client
}

// Exec runs statements against client, failing the test on the first error.
func Exec(t *testing.T, client *olap.Client, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := client.DB().ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to exec %q: %v", stmt, err)
		}
	}
}
