// Package config loads the runmetrics configuration.
//
// Values are layered: DefaultConfig, then the YAML file (if present), then
// RUNMETRICS_* environment variables named by `env` struct tags.
package config

import "time"

// SchemaVersion is the current config file schema version.
const SchemaVersion = "1"

// Config is the root of the configuration file.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host" env:"RUNMETRICS_HOST"`
	Port int    `yaml:"port" env:"RUNMETRICS_PORT"`

	// TokensFile is where API tokens are persisted.
	TokensFile string `yaml:"tokens_file" env:"RUNMETRICS_TOKENS_FILE"`

	// RequireAuth disables the bearer token check when false. Only meant for
	// local development; queries then run in DevScope.
	RequireAuth bool `yaml:"require_auth" env:"RUNMETRICS_REQUIRE_AUTH"`

	// DevScope is the tenant scope used when RequireAuth is false.
	DevScope ScopeConfig `yaml:"dev_scope"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"RUNMETRICS_READ_HEADER_TIMEOUT"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"RUNMETRICS_REQUEST_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"RUNMETRICS_SHUTDOWN_TIMEOUT"`
}

// ScopeConfig is a tenant scope.
type ScopeConfig struct {
	OrganizationID string `yaml:"organization_id" env:"RUNMETRICS_DEV_ORGANIZATION_ID"`
	ProjectID      string `yaml:"project_id" env:"RUNMETRICS_DEV_PROJECT_ID"`
	EnvironmentID  string `yaml:"environment_id" env:"RUNMETRICS_DEV_ENVIRONMENT_ID"`
}

// DatabaseConfig configures the analytical store connection.
type DatabaseConfig struct {
	// Dialect is "clickhouse" or "duckdb".
	Dialect string `yaml:"dialect" env:"RUNMETRICS_DB_DIALECT"`
	DSN     string `yaml:"dsn" env:"RUNMETRICS_DB_DSN"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"RUNMETRICS_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"RUNMETRICS_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"RUNMETRICS_DB_CONN_MAX_LIFETIME"`

	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int           `yaml:"connect_attempts" env:"RUNMETRICS_DB_CONNECT_ATTEMPTS"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" env:"RUNMETRICS_DB_CONNECT_BACKOFF"`

	// Settings are engine settings sent with every query (ClickHouse only).
	Settings map[string]string `yaml:"settings"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"RUNMETRICS_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"RUNMETRICS_LOG_PRETTY"`
}
