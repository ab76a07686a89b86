package olap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	duckdbDriver "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"github.com/runmetrics/runmetrics/internal/config"
	"github.com/runmetrics/runmetrics/internal/retry"
)

// Client is the handle every query runs through. It is safe for concurrent
// use; the connection pool belongs to database/sql.
type Client struct {
	db       *sql.DB
	dialect  Dialect
	settings Settings
	logger   zerolog.Logger
}

// NewClient wraps an open database handle.
func NewClient(db *sql.DB, dialect Dialect, logger zerolog.Logger) *Client {
	return &Client{
		db:       db,
		dialect:  dialect,
		settings: Settings{},
		logger:   logger.With().Str("component", "olap").Str("dialect", dialect.Name()).Logger(),
	}
}

// Open connects to the store described by cfg and waits until it answers a
// ping, retrying with backoff.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Client, error) {
	dialect, err := DialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := openDB(dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	client := NewClient(db, dialect, logger).WithSettings(settingsFromConfig(cfg.Settings))

	probe := retry.Config{
		MaxRetries:     cfg.ConnectAttempts,
		InitialBackoff: cfg.ConnectBackoff,
		MaxBackoff:     5 * time.Second,
		Jitter:         0.1,
	}
	attempt := 0
	err = retry.Do(ctx, probe, func(ctx context.Context) error {
		attempt++
		if err := client.Ping(ctx); err != nil {
			client.logger.Warn().Err(err).Int("attempt", attempt).Msg("Analytical store not reachable yet")
			return err
		}
		return nil
	}, nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect.Name(), err)
	}

	client.logger.Info().Int("attempts", attempt).Msg("Connected to analytical store")
	return client, nil
}

func openDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect.Name() {
	case DialectClickHouse:
		opts, err := clickhouse.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
		}
		return clickhouse.OpenDB(opts), nil

	case DialectDuckDB:
		connector, err := duckdbDriver.NewConnector(dsn, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open duckdb: %w", err)
		}
		return sql.OpenDB(connector), nil

	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect.Name())
	}
}

func settingsFromConfig(in map[string]string) Settings {
	out := make(Settings, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WithSettings sets the default engine settings sent with every query.
// Per-query settings win on conflicts.
func (c *Client) WithSettings(settings Settings) *Client {
	c.settings = Settings{}.Merge(settings)
	return c
}

// Dialect returns the client's dialect.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// DB exposes the underlying handle for callers that need raw access.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// ApplyDDL runs statements in order, stopping at the first failure.
// Statements are expected to be idempotent (IF NOT EXISTS).
func (c *Client) ApplyDDL(ctx context.Context, statements []string) error {
	for i, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute DDL statement %d: %w", i+1, err)
		}
	}
	c.logger.Debug().Int("statements", len(statements)).Msg("Schema applied")
	return nil
}
