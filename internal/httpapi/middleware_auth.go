package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/runmetrics/runmetrics/internal/auth"
)

// ContextKey is the type for context keys used by middleware.
type ContextKey string

const (
	// TokenContextKey is the context key for the authenticated token.
	TokenContextKey ContextKey = "authenticated_token"

	tokenHolderKey ContextKey = "token_holder"
)

// tokenHolder lets middleware that runs before auth see the token after the
// request completes.
type tokenHolder struct {
	token *auth.APIToken
}

func withTokenHolder(r *http.Request) (*http.Request, *tokenHolder) {
	holder := &tokenHolder{}
	return r.WithContext(context.WithValue(r.Context(), tokenHolderKey, holder)), holder
}

func withToken(r *http.Request, token *auth.APIToken) *http.Request {
	if holder, ok := r.Context().Value(tokenHolderKey).(*tokenHolder); ok {
		holder.token = token
	}
	return r.WithContext(context.WithValue(r.Context(), TokenContextKey, token))
}

// GetAuthenticatedToken retrieves the authenticated token from the request
// context, or nil when there is none.
func GetAuthenticatedToken(ctx context.Context) *auth.APIToken {
	token, _ := ctx.Value(TokenContextKey).(*auth.APIToken)
	return token
}

// AuthMiddleware validates Bearer tokens in the Authorization header.
type AuthMiddleware struct {
	tokenStore *auth.TokenStore
	logger     zerolog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(store *auth.TokenStore, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenStore: store,
		logger:     logger.With().Str("middleware", "auth").Logger(),
	}
}

// Handler wraps an http.Handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.logger.Debug().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Missing Authorization header")
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			m.logger.Debug().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid Authorization header format")
			writeError(w, http.StatusUnauthorized, "invalid Authorization format (expected 'Bearer <token>')")
			return
		}

		storedToken, err := m.tokenStore.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			m.logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid token")
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		m.logger.Debug().
			Str("token_id", storedToken.TokenID).
			Str("scope", storedToken.Scope.String()).
			Str("path", r.URL.Path).
			Msg("Request authenticated")

		next.ServeHTTP(w, withToken(r, storedToken))
	})
}

// DevScopeMiddleware stands in for AuthMiddleware when authentication is
// disabled: every request runs as an admin token bound to scope.
func DevScopeMiddleware(scope auth.Scope) func(http.Handler) http.Handler {
	token := &auth.APIToken{
		TokenID:     "dev",
		Scope:       scope,
		Permissions: []auth.Permission{auth.PermissionAdmin},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, withToken(r, token))
		})
	}
}

// RequirePermission rejects requests whose token lacks perm.
func RequirePermission(perm auth.Permission, logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("middleware", "permission").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetAuthenticatedToken(r.Context())
			if token == nil {
				logger.Error().
					Str("path", r.URL.Path).
					Msg("No authenticated token in context - auth middleware may not have run")
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !auth.HasPermission(token, perm) {
				logger.Warn().
					Str("token_id", token.TokenID).
					Str("path", r.URL.Path).
					Str("required_permission", string(perm)).
					Strs("token_permissions", permissionsToStrings(token.Permissions)).
					Msg("Permission denied")
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func permissionsToStrings(perms []auth.Permission) []string {
	result := make([]string, len(perms))
	for i, p := range perms {
		result[i] = string(p)
	}
	return result
}
