package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runmetrics/runmetrics/internal/testutil"
)

const runsJSONL = `{"run_id":"r1","organization_id":"org_1","project_id":"proj_1","environment_id":"env_1","task_identifier":"build","status":"COMPLETED","queue":"default","created_at":"2024-01-01T10:05:00Z","usage_duration_ms":100,"cost_in_cents":1.5}

{"run_id":"r2","organization_id":"org_1","project_id":"proj_1","environment_id":"env_1","task_identifier":"build","status":"FAILED","queue":"default","created_at":"2024-01-01T10:20:00+01:00","usage_duration_ms":300}
`

func TestReadRuns(t *testing.T) {
	runs, err := ReadRuns(strings.NewReader(runsJSONL))
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "r1", runs[0].RunID)
	assert.Equal(t, uint64(100), runs[0].UsageDurationMs)
	assert.Equal(t, 1.5, runs[0].CostInCents)
	assert.True(t, time.Date(2024, 1, 1, 9, 20, 0, 0, time.UTC).Equal(runs[1].CreatedAt))
}

func TestReadRuns_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bad json", `{"run_id":`, "line 1"},
		{"unknown field", `{"run_id":"r","cost":1}`, "unknown field"},
		{"missing scope", `{"run_id":"r","created_at":"2024-01-01T00:00:00Z"}`, "organization_id"},
		{"missing created_at", `{"run_id":"r","organization_id":"o","project_id":"p","environment_id":"e"}`, "created_at"},
		{"bad deleted flag", `{"run_id":"r","organization_id":"o","project_id":"p","environment_id":"e","created_at":"2024-01-01T00:00:00Z","_is_deleted":2}`, "_is_deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRuns(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInsertRuns_FeedsQueries(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewTestClient(t)
	require.NoError(t, EnsureSchema(ctx, client))

	runs, err := ReadRuns(strings.NewReader(runsJSONL))
	require.NoError(t, err)
	require.NoError(t, InsertRuns(ctx, client, runs))

	// Re-importing a run replaces it instead of adding a second row.
	runs[1].Status = "COMPLETED"
	require.NoError(t, InsertRuns(ctx, client, runs[1:]))

	q := NewQueries(client, zerolog.Nop())
	rows := execute(t, q, KindTaskRunStatusCounts, firstDayParams())
	assert.Equal(t, []MetricRow{
		{Bucket: hour(9), Value: 1, Label: "COMPLETED"},
		{Bucket: hour(10), Value: 1, Label: "COMPLETED"},
	}, rows)

	rows = execute(t, q, KindTaskRunCount, firstDayParams())
	require.Len(t, rows, 2)
	assert.Equal(t, hour(9), rows[0].Bucket)
	assert.Equal(t, hour(10), rows[1].Bucket)
}

func TestInsertRuns_RejectsInvalid(t *testing.T) {
	client := testutil.NewTestClient(t)
	err := InsertRuns(context.Background(), client, []TaskRun{{RunID: "x"}})
	assert.Error(t, err)
}
