package metrics

import (
	"context"

	"github.com/runmetrics/runmetrics/internal/olap"
)

// TaskRunsTable is the table every metric reads from.
const TaskRunsTable = "task_runs_v2"

// Columns of TaskRunsTable referenced by the composer and presets.
const (
	ColumnRunID           = "run_id"
	ColumnOrganizationID  = "organization_id"
	ColumnProjectID       = "project_id"
	ColumnEnvironmentID   = "environment_id"
	ColumnTaskIdentifier  = "task_identifier"
	ColumnStatus          = "status"
	ColumnQueue           = "queue"
	ColumnCreatedAt       = "created_at"
	ColumnUsageDurationMs = "usage_duration_ms"
	ColumnCostInCents     = "cost_in_cents"
	ColumnIsDeleted       = "_is_deleted"
)

var clickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS task_runs_v2 (
		run_id            String,
		organization_id   String,
		project_id        String,
		environment_id    String,
		task_identifier   String,
		status            LowCardinality(String),
		queue             String,
		created_at        DateTime64(3),
		usage_duration_ms UInt64 DEFAULT 0,
		cost_in_cents     Float64 DEFAULT 0,
		_version          UInt64,
		_is_deleted       UInt8 DEFAULT 0
	)
	ENGINE = ReplacingMergeTree(_version, _is_deleted)
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (organization_id, project_id, environment_id, created_at, run_id)`,
}

var duckDBSchema = []string{
	`CREATE TABLE IF NOT EXISTS task_runs_v2 (
		run_id            VARCHAR PRIMARY KEY,
		organization_id   VARCHAR NOT NULL,
		project_id        VARCHAR NOT NULL,
		environment_id    VARCHAR NOT NULL,
		task_identifier   VARCHAR NOT NULL,
		status            VARCHAR NOT NULL,
		queue             VARCHAR NOT NULL,
		created_at        TIMESTAMP NOT NULL,
		usage_duration_ms BIGINT DEFAULT 0,
		cost_in_cents     DOUBLE DEFAULT 0,
		_version          BIGINT DEFAULT 0,
		_is_deleted       UTINYINT DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_runs_v2_scope ON task_runs_v2 (organization_id, project_id, environment_id, created_at)`,
}

// SchemaDDL returns the statements creating TaskRunsTable for d.
func SchemaDDL(d olap.Dialect) []string {
	if d.Name() == olap.DialectDuckDB {
		return duckDBSchema
	}
	return clickHouseSchema
}

// EnsureSchema creates TaskRunsTable if it does not exist.
func EnsureSchema(ctx context.Context, client *olap.Client) error {
	return client.ApplyDDL(ctx, SchemaDDL(client.Dialect()))
}
