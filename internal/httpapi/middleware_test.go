package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runmetrics/runmetrics/internal/auth"
)

var testScope = auth.Scope{OrganizationID: "org_1", ProjectID: "proj_1", EnvironmentID: "env_1"}

func newStoreWithToken(t *testing.T, perms []auth.Permission, rateLimit string) (*auth.TokenStore, string) {
	t.Helper()
	store, err := auth.NewTokenStore("")
	require.NoError(t, err)
	info, err := store.GenerateToken("test-token", testScope, perms, rateLimit)
	require.NoError(t, err)
	return store, info.Token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	store, token := newStoreWithToken(t, []auth.Permission{auth.PermissionQuery}, "")

	var captured *auth.APIToken
	handler := NewAuthMiddleware(store, zerolog.Nop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAuthenticatedToken(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", scheme+" "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, scheme)
		require.NotNil(t, captured)
		assert.Equal(t, "test-token", captured.TokenID)
		assert.Equal(t, testScope, captured.Scope)
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	store, token := newStoreWithToken(t, []auth.Permission{auth.PermissionQuery}, "")

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "missing Authorization header"},
		{"wrong scheme", "Basic " + token, "invalid Authorization format"},
		{"no token", "Bearer ", "invalid Authorization format"},
		{"unknown token", "Bearer rm_nope", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(store, zerolog.Nop()).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Error("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGetAuthenticatedToken_NoToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	assert.Nil(t, GetAuthenticatedToken(req.Context()))
}

func TestDevScopeMiddleware(t *testing.T) {
	var captured *auth.APIToken
	handler := DevScopeMiddleware(testScope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetAuthenticatedToken(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, captured)
	assert.Equal(t, testScope, captured.Scope)
	assert.True(t, auth.HasPermission(captured, auth.PermissionQuery))
}

func TestRequirePermission(t *testing.T) {
	mw := RequirePermission(auth.PermissionQuery, zerolog.Nop())

	tests := []struct {
		name  string
		token *auth.APIToken
		want  int
	}{
		{"granted", &auth.APIToken{TokenID: "q", Permissions: []auth.Permission{auth.PermissionQuery}}, http.StatusOK},
		{"admin", &auth.APIToken{TokenID: "a", Permissions: []auth.Permission{auth.PermissionAdmin}}, http.StatusOK},
		{"denied", &auth.APIToken{TokenID: "n", Permissions: nil}, http.StatusForbidden},
		{"no token", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.token != nil {
				req = withToken(req, tt.token)
			}
			rec := httptest.NewRecorder()
			mw(okHandler()).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter(t)
	handler := NewRateLimitMiddleware(limiter, zerolog.Nop()).Handler(okHandler())

	token := &auth.APIToken{TokenID: "limited", RateLimit: "3/minute"}

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withToken(httptest.NewRequest(http.MethodGet, "/test", nil), token))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withToken(httptest.NewRequest(http.MethodGet, "/test", nil), token))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitMiddleware_Passthrough(t *testing.T) {
	handler := NewRateLimitMiddleware(newTestLimiter(t), zerolog.Nop()).Handler(okHandler())

	for _, token := range []*auth.APIToken{
		nil,
		{TokenID: "unlimited"},
		{TokenID: "broken", RateLimit: "lots"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		if token != nil {
			req = withToken(req, token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestAuditMiddleware_LogsTokenAndStatus(t *testing.T) {
	store, token := newStoreWithToken(t, []auth.Permission{auth.PermissionQuery}, "")

	var buf bytes.Buffer
	audit := NewAuditMiddleware(zerolog.New(&buf))
	handler := audit.Handler(NewAuthMiddleware(store, zerolog.Nop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"token_id":"test-token"`)
	assert.Contains(t, out, `"status":418`)
	assert.NotContains(t, out, token)

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/metrics/x", nil))
	assert.Contains(t, buf.String(), `"token_id":"anonymous"`)
	assert.Contains(t, buf.String(), `"status":401`)
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.Equal(t, 1, retryAfterSeconds(now, now))
	assert.Equal(t, 1, retryAfterSeconds(now.Add(-time.Second), now))
	assert.Equal(t, 2, retryAfterSeconds(now.Add(1500*time.Millisecond), now))
	assert.Equal(t, 60, retryAfterSeconds(now.Add(time.Minute), now))
}

func TestRateLimitMiddleware_CachesParsedLimits(t *testing.T) {
	m := NewRateLimitMiddleware(newTestLimiter(t), zerolog.Nop())

	first := m.limitFor("a", "5/second")
	require.NotNil(t, first)
	assert.Same(t, first, m.limitFor("b", "5/second"))

	assert.Nil(t, m.limitFor("c", "lots"))
	assert.Nil(t, m.limitFor("c", "lots"))
	assert.Nil(t, m.limitFor("d", ""))
}
