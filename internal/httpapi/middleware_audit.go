package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AuditMiddleware logs every API request with the token that made it.
type AuditMiddleware struct {
	logger zerolog.Logger
}

// NewAuditMiddleware creates an audit logging middleware.
func NewAuditMiddleware(logger zerolog.Logger) *AuditMiddleware {
	return &AuditMiddleware{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Handler wraps an http.Handler with audit logging. It must run outside the
// auth middleware so rejected requests are logged too; the token is read
// from a holder the auth middleware fills in.
func (m *AuditMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		r, holder := withTokenHolder(r)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		event := m.logger.Info()
		if status >= http.StatusInternalServerError {
			event = m.logger.Error()
		}

		event = event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start))

		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			event = event.Str("request_id", reqID)
		}

		// Never log the token value itself.
		if holder.token != nil {
			event = event.Str("token_id", holder.token.TokenID)
		} else {
			event = event.Str("token_id", "anonymous")
		}

		if ua := r.Header.Get("User-Agent"); ua != "" {
			event = event.Str("user_agent", ua)
		}

		event.Msg("Request")
	})
}
