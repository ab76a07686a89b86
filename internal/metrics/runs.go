package metrics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/runmetrics/runmetrics/internal/olap"
)

// TaskRun is one row of TaskRunsTable. The scope and creation time of a run
// never change once written.
type TaskRun struct {
	RunID           string    `ch:"run_id,pk" json:"run_id"`
	OrganizationID  string    `ch:"organization_id,immutable" json:"organization_id"`
	ProjectID       string    `ch:"project_id,immutable" json:"project_id"`
	EnvironmentID   string    `ch:"environment_id,immutable" json:"environment_id"`
	TaskIdentifier  string    `ch:"task_identifier" json:"task_identifier"`
	Status          string    `ch:"status" json:"status"`
	Queue           string    `ch:"queue" json:"queue"`
	CreatedAt       time.Time `ch:"created_at,immutable" json:"created_at"`
	UsageDurationMs uint64    `ch:"usage_duration_ms" json:"usage_duration_ms"`
	CostInCents     float64   `ch:"cost_in_cents" json:"cost_in_cents"`
	Version         uint64    `ch:"_version" json:"_version"`
	IsDeleted       uint8     `ch:"_is_deleted" json:"_is_deleted"`
}

// Validate requires the key, the tenant columns and a creation time.
func (r TaskRun) Validate() error {
	switch {
	case r.RunID == "":
		return fmt.Errorf("run_id is required")
	case r.OrganizationID == "" || r.ProjectID == "" || r.EnvironmentID == "":
		return fmt.Errorf("run %s: organization_id, project_id and environment_id are required", r.RunID)
	case r.CreatedAt.IsZero():
		return fmt.Errorf("run %s: created_at is required", r.RunID)
	case r.IsDeleted > 1:
		return fmt.Errorf("run %s: _is_deleted must be 0 or 1", r.RunID)
	}
	return nil
}

// ReadRuns decodes task runs from JSON Lines. Blank lines are skipped.
func ReadRuns(r io.Reader) ([]TaskRun, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	var runs []TaskRun
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var run TaskRun
		dec := json.NewDecoder(strings.NewReader(text))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&run); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := run.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		runs = append(runs, run)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// InsertRuns writes runs into TaskRunsTable. A run whose _version is zero
// gets the current time in milliseconds, so a re-import replaces the
// earlier copy.
func InsertRuns(ctx context.Context, client *olap.Client, runs []TaskRun) error {
	for i := range runs {
		if err := runs[i].Validate(); err != nil {
			return err
		}
	}

	table, err := olap.NewTable[TaskRun](client, TaskRunsTable)
	if err != nil {
		return err
	}

	version := uint64(time.Now().UnixMilli())
	rows := make([]TaskRun, len(runs))
	for i, run := range runs {
		run.CreatedAt = run.CreatedAt.UTC()
		if run.Version == 0 {
			run.Version = version
		}
		rows[i] = run
	}

	return table.Upsert(ctx, rows)
}
