package config

import (
	"errors"
	"fmt"
)

// Validate checks cfg for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RequireAuth && c.Server.TokensFile == "" {
		errs = append(errs, errors.New("server.tokens_file is required when server.require_auth is true"))
	}
	if !c.Server.RequireAuth {
		s := c.Server.DevScope
		if s.OrganizationID == "" || s.ProjectID == "" || s.EnvironmentID == "" {
			errs = append(errs, errors.New("server.dev_scope must be fully set when server.require_auth is false"))
		}
	}

	switch c.Database.Dialect {
	case "clickhouse", "duckdb":
	default:
		errs = append(errs, fmt.Errorf("database.dialect %q is not supported (clickhouse, duckdb)", c.Database.Dialect))
	}
	if c.Database.Dialect == "clickhouse" && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required for clickhouse"))
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		errs = append(errs, errors.New("database connection limits must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
