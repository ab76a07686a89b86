// Package serve implements 'runmetrics serve'.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/auth"
	"github.com/runmetrics/runmetrics/internal/cli/helpers"
	"github.com/runmetrics/runmetrics/internal/errors"
	"github.com/runmetrics/runmetrics/internal/httpapi"
	"github.com/runmetrics/runmetrics/internal/metrics"
	"github.com/runmetrics/runmetrics/internal/olap"
	"github.com/runmetrics/runmetrics/internal/presenter"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		port   int
		noAuth bool
		initDB bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metrics HTTP API",
		Long: `Serve the metrics HTTP API.

Routes:
  GET  /health
  GET  /api/v1/metrics/{kind}
  POST /api/v1/metrics/query
  GET  /api/v1/metrics/schema

Requests carry a bearer token created with 'runmetrics token create'. The
token decides which organization, project and environment is queried.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := helpers.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if noAuth {
				cfg.Server.RequireAuth = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := olap.Open(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer errors.DeferClose(logger, client, "failed to close database")

			if initDB {
				if err := metrics.EnsureSchema(ctx, client); err != nil {
					return fmt.Errorf("failed to create schema: %w", err)
				}
			}

			var tokens *auth.TokenStore
			if cfg.Server.RequireAuth {
				tokens, err = auth.NewTokenStore(cfg.Server.TokensFile)
				if err != nil {
					return err
				}
			}

			queries := metrics.NewQueries(client, logger)
			server, err := httpapi.New(httpapi.Config{
				Server:     cfg.Server,
				Metrics:    presenter.NewMetricsPresenter(queries, logger),
				TokenStore: tokens,
				Health:     client,
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create HTTP server: %w", err)
			}

			errCh := server.Start()
			logger.Info().
				Str("addr", server.Addr()).
				Str("dialect", client.Dialect().Name()).
				Bool("auth", cfg.Server.RequireAuth).
				Msg("Metrics API started")

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("Shutting down metrics API")
			if err := server.Stop(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Error stopping HTTP server")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Disable bearer token authentication (development only)")
	cmd.Flags().BoolVar(&initDB, "init-db", false, "Create the task_runs_v2 table before serving")

	return cmd
}
