package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = Scope{OrganizationID: "org_1", ProjectID: "proj_1", EnvironmentID: "env_1"}

func newMemoryStore(t *testing.T) *TokenStore {
	t.Helper()
	ts, err := NewTokenStore("")
	require.NoError(t, err)
	return ts
}

func TestTokenStore_GenerateToken(t *testing.T) {
	ts := newMemoryStore(t)

	tests := []struct {
		name        string
		tokenID     string
		scope       Scope
		permissions []Permission
		rateLimit   string
		wantErr     bool
	}{
		{
			name:        "query token",
			tokenID:     "dashboard",
			scope:       testScope,
			permissions: []Permission{PermissionQuery},
		},
		{
			name:        "token with rate limit",
			tokenID:     "limited",
			scope:       testScope,
			permissions: []Permission{PermissionQuery},
			rateLimit:   "100/hour",
		},
		{
			name:        "admin token",
			tokenID:     "admin",
			scope:       testScope,
			permissions: []Permission{PermissionAdmin},
		},
		{
			name:        "missing scope",
			tokenID:     "unscoped",
			scope:       Scope{OrganizationID: "org_1"},
			permissions: []Permission{PermissionQuery},
			wantErr:     true,
		},
		{
			name:    "no permissions",
			tokenID: "empty",
			scope:   testScope,
			wantErr: true,
		},
		{
			name:        "empty id",
			scope:       testScope,
			permissions: []Permission{PermissionQuery},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ts.GenerateToken(tt.tokenID, tt.scope, tt.permissions, tt.rateLimit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.tokenID, info.TokenID)
			assert.True(t, strings.HasPrefix(info.Token, TokenPrefix))
			assert.Equal(t, tt.scope, info.Scope)
			assert.Equal(t, tt.permissions, info.Permissions)
			assert.Equal(t, tt.rateLimit, info.RateLimit)
		})
	}
}

func TestTokenStore_GenerateToken_Duplicate(t *testing.T) {
	ts := newMemoryStore(t)

	_, err := ts.GenerateToken("dup", testScope, []Permission{PermissionQuery}, "")
	require.NoError(t, err)

	_, err = ts.GenerateToken("dup", testScope, []Permission{PermissionQuery}, "")
	assert.ErrorContains(t, err, "already exists")
}

func TestTokenStore_ValidateToken(t *testing.T) {
	ts := newMemoryStore(t)

	info, err := ts.GenerateToken("valid", testScope, []Permission{PermissionQuery}, "")
	require.NoError(t, err)

	token, err := ts.ValidateToken(info.Token)
	require.NoError(t, err)
	assert.Equal(t, "valid", token.TokenID)
	assert.Equal(t, testScope, token.Scope)
	assert.NotNil(t, token.LastUsedAt)

	// The prefix is optional.
	token, err = ts.ValidateToken(strings.TrimPrefix(info.Token, TokenPrefix))
	require.NoError(t, err)
	assert.Equal(t, "valid", token.TokenID)
}

func TestTokenStore_ValidateToken_Invalid(t *testing.T) {
	ts := newMemoryStore(t)

	_, err := ts.GenerateToken("test", testScope, []Permission{PermissionQuery}, "")
	require.NoError(t, err)

	for _, token := range []string{"", TokenPrefix, TokenPrefix + "invalid", "random_garbage_string"} {
		t.Run(token, func(t *testing.T) {
			_, err := ts.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenStore_ValidateToken_Revoked(t *testing.T) {
	ts := newMemoryStore(t)

	info, err := ts.GenerateToken("revoked", testScope, []Permission{PermissionQuery}, "")
	require.NoError(t, err)
	require.NoError(t, ts.RevokeToken("revoked"))

	_, err = ts.ValidateToken(info.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.Error(t, ts.RevokeToken("missing"))
}

func TestTokenStore_ListTokens(t *testing.T) {
	ts := newMemoryStore(t)

	for _, id := range []string{"token2", "token1", "token3"} {
		_, err := ts.GenerateToken(id, testScope, []Permission{PermissionQuery}, "")
		require.NoError(t, err)
	}

	tokens := ts.ListTokens()
	require.Len(t, tokens, 3)
	assert.Equal(t, "token1", tokens[0].TokenID)
	assert.Equal(t, "token3", tokens[2].TokenID)

	require.NoError(t, ts.RevokeToken("token1"))

	tokens = ts.ListTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, "token2", tokens[0].TokenID)
}

func TestTokenStore_DeleteToken(t *testing.T) {
	ts := newMemoryStore(t)

	_, err := ts.GenerateToken("delete-me", testScope, []Permission{PermissionQuery}, "")
	require.NoError(t, err)

	require.NoError(t, ts.DeleteToken("delete-me"))
	_, exists := ts.GetToken("delete-me")
	assert.False(t, exists)

	assert.Error(t, ts.DeleteToken("delete-me"))
}

func TestTokenStore_Persistence(t *testing.T) {
	tokensFile := filepath.Join(t.TempDir(), "tokens.yaml")

	ts1, err := NewTokenStore(tokensFile)
	require.NoError(t, err)
	info, err := ts1.GenerateToken("persisted", testScope, []Permission{PermissionQuery}, "50/minute")
	require.NoError(t, err)

	stat, err := os.Stat(tokensFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), stat.Mode().Perm())

	data, err := os.ReadFile(tokensFile)
	require.NoError(t, err)
	assert.NotContains(t, string(data), strings.TrimPrefix(info.Token, TokenPrefix), "plaintext must not be stored")

	ts2, err := NewTokenStore(tokensFile)
	require.NoError(t, err)

	tokens := ts2.ListTokens()
	require.Len(t, tokens, 1)
	assert.Equal(t, "persisted", tokens[0].TokenID)
	assert.Equal(t, "50/minute", tokens[0].RateLimit)
	assert.Equal(t, testScope, tokens[0].Scope)

	token, err := ts2.ValidateToken(info.Token)
	require.NoError(t, err)
	assert.Equal(t, "persisted", token.TokenID)
}

func TestNewTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens: [this is: not: valid"), 0600))

	_, err := NewTokenStore(path)
	assert.ErrorContains(t, err, "failed to parse tokens file")
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name       string
		tokenPerms []Permission
		required   Permission
		want       bool
	}{
		{"exact match", []Permission{PermissionQuery}, PermissionQuery, true},
		{"admin grants query", []Permission{PermissionAdmin}, PermissionQuery, true},
		{"query does not grant admin", []Permission{PermissionQuery}, PermissionAdmin, false},
		{"empty permissions", []Permission{}, PermissionQuery, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := &APIToken{TokenID: "test", Permissions: tt.tokenPerms, CreatedAt: time.Now()}
			assert.Equal(t, tt.want, HasPermission(token, tt.required))
		})
	}
}

func TestParsePermission(t *testing.T) {
	assert.Equal(t, PermissionQuery, ParsePermission("query"))
	assert.Equal(t, PermissionAdmin, ParsePermission("admin"))
	assert.Equal(t, Permission(""), ParsePermission("QUERY"))
	assert.Equal(t, Permission(""), ParsePermission("debug"))
	assert.Len(t, AllPermissions(), 2)
}

func TestScope(t *testing.T) {
	assert.NoError(t, testScope.Validate())
	assert.Equal(t, "org_1/proj_1/env_1", testScope.String())
	assert.Error(t, Scope{OrganizationID: "o", ProjectID: "p"}.Validate())
}
