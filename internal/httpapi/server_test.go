package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runmetrics/runmetrics/internal/auth"
	"github.com/runmetrics/runmetrics/internal/config"
	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/presenter"
	"github.com/runmetrics/runmetrics/internal/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stack struct {
	handler http.Handler
	store   *auth.TokenStore
}

func newStack(t *testing.T) stack {
	t.Helper()
	ctx := context.Background()

	client := testutil.NewTestClient(t)
	require.NoError(t, metrics.EnsureSchema(ctx, client))

	_, err := client.DB().ExecContext(ctx, `INSERT INTO task_runs_v2
		(run_id, organization_id, project_id, environment_id, task_identifier, status, queue, created_at)
	VALUES
		('r1', 'org_1', 'proj_1', 'env_1', 'build', 'COMPLETED', 'default', TIMESTAMP '2024-05-01 08:05:00'),
		('r2', 'org_1', 'proj_1', 'env_1', 'build', 'FAILED', 'default', TIMESTAMP '2024-05-01 08:15:00'),
		('r3', 'org_2', 'proj_9', 'env_9', 'build', 'COMPLETED', 'default', TIMESTAMP '2024-05-01 08:25:00')`)
	require.NoError(t, err)

	store, err := auth.NewTokenStore("")
	require.NoError(t, err)

	srvCfg := config.DefaultConfig().Server
	srv, err := New(Config{
		Server:     srvCfg,
		Metrics:    presenter.NewMetricsPresenter(metrics.NewQueries(client, zerolog.Nop()), zerolog.Nop()),
		TokenStore: store,
		Health:     client,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	return stack{handler: srv.Handler(), store: store}
}

func (s stack) token(t *testing.T, id string, scope auth.Scope, perms ...auth.Permission) string {
	t.Helper()
	info, err := s.store.GenerateToken(id, scope, perms, "")
	require.NoError(t, err)
	return info.Token
}

func (s stack) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

const runCountPath = "/api/v1/metrics/task_run_count?from=2024-05-01T00:00:00Z&to=2024-05-02T00:00:00Z"

func TestServer_Health(t *testing.T) {
	s := newStack(t)

	rec := s.get("/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}

func TestServer_HealthReportsStoreFailure(t *testing.T) {
	srv, err := New(Config{
		Server:  config.ServerConfig{RequireAuth: false},
		Metrics: &fakeCaller{},
		Health:  pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_RequiresToken(t *testing.T) {
	s := newStack(t)

	assert.Equal(t, http.StatusUnauthorized, s.get(runCountPath, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.get(runCountPath, "rm_bogus").Code)
}

func TestServer_RequiresQueryPermission(t *testing.T) {
	s := newStack(t)

	// A token with no recognised permission.
	token := s.token(t, "weak", testScope, auth.Permission("status"))
	assert.Equal(t, http.StatusForbidden, s.get(runCountPath, token).Code)
}

func TestServer_ServesTenantScopedMetrics(t *testing.T) {
	s := newStack(t)
	token := s.token(t, "dash", testScope, auth.PermissionQuery)

	rec := s.get(runCountPath, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result metrics.MetricResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	assert.Equal(t, metrics.KindTaskRunCount, result.Metric)
	assert.Equal(t, "1h", result.Granularity)
	require.Len(t, result.Data, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), result.Data[0].Timestamp)
	assert.Equal(t, 2.0, result.Data[0].Value, "org_2 rows must not be counted")
	assert.Nil(t, result.Data[0].Label)
}

func TestServer_StatusCodes(t *testing.T) {
	s := newStack(t)
	token := s.token(t, "dash", testScope, auth.PermissionAdmin)

	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/metrics/task_run_count?granularity=1w", token).Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/metrics/custom", token).Code)
	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/metrics/p99", token).Code)
	assert.Equal(t, http.StatusOK, s.get("/api/v1/metrics/schema", token).Code)

	rec := s.get("/api/v1/metrics/custom?rollup=sum:no_such_column", token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to query custom")
}

func TestServer_DevScopeWithoutAuth(t *testing.T) {
	var logs bytes.Buffer
	caller := &fakeCaller{result: &metrics.MetricResult{}}
	srv, err := New(Config{
		Server: config.ServerConfig{
			RequireAuth: false,
			DevScope:    config.ScopeConfig{OrganizationID: "dev_org", ProjectID: "dev_proj", EnvironmentID: "dev_env"},
		},
		Metrics: caller,
		Logger:  zerolog.New(&logs),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	assert.Equal(t, 1, strings.Count(logs.String(), "Authentication disabled"))
	assert.Contains(t, logs.String(), "dev_org/dev_proj/dev_env")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/metrics/task_run_count", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev_org", caller.got.Params.OrganizationID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Server: config.ServerConfig{RequireAuth: true}, Metrics: &fakeCaller{}})
	assert.ErrorContains(t, err, "token store")

	_, err = New(Config{})
	assert.ErrorContains(t, err, "metrics caller")
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newStack(t)
	rec := s.get("/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}
