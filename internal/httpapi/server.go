// Package httpapi serves task-run metrics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/runmetrics/runmetrics/internal/auth"
	"github.com/runmetrics/runmetrics/internal/config"
)

// Pinger reports whether the analytical store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config contains dependencies for creating the HTTP server.
type Config struct {
	Server config.ServerConfig

	Metrics MetricsCaller

	// TokenStore is required when Server.RequireAuth is set.
	TokenStore *auth.TokenStore

	// Health is pinged by /health. Optional.
	Health Pinger

	Logger zerolog.Logger
}

// Server is the metrics HTTP server.
type Server struct {
	httpServer      *http.Server
	limiter         *RateLimiter
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// New builds the router and HTTP server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger.With().Str("component", "httpapi").Logger()

	if cfg.Metrics == nil {
		return nil, fmt.Errorf("metrics caller is required")
	}
	if cfg.Server.RequireAuth && cfg.TokenStore == nil {
		return nil, fmt.Errorf("token store is required when authentication is enabled")
	}

	handler, err := NewMetricsHandler(cfg.Metrics, logger)
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter(5 * time.Minute)

	var authenticate func(http.Handler) http.Handler
	if cfg.Server.RequireAuth {
		authenticate = NewAuthMiddleware(cfg.TokenStore, logger).Handler
	} else {
		scope := auth.Scope{
			OrganizationID: cfg.Server.DevScope.OrganizationID,
			ProjectID:      cfg.Server.DevScope.ProjectID,
			EnvironmentID:  cfg.Server.DevScope.EnvironmentID,
		}
		logger.Warn().Str("scope", scope.String()).Msg("Authentication disabled, serving a fixed tenant scope")
		authenticate = DevScopeMiddleware(scope)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler(cfg.Health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(NewAuditMiddleware(logger).Handler)
		r.Use(authenticate)
		r.Use(NewRateLimitMiddleware(limiter, logger).Handler)
		r.Use(RequirePermission(auth.PermissionQuery, logger))
		if cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		}
		handler.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		limiter:         limiter,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
	}, nil
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens in a background goroutine. Listen errors other than a
// normal shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Stop drains in-flight requests, bounded by the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP server")
	s.limiter.Stop()

	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
