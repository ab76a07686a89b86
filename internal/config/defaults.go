package config

import "time"

// Default values.
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8090
	DefaultTokensFile        = "tokens.yaml"
	DefaultDialect           = "clickhouse"
	DefaultDSN               = "clickhouse://default:@localhost:9000/default"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			TokensFile:        DefaultTokensFile,
			RequireAuth:       true,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			RequestTimeout:    DefaultRequestTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			Dialect:         DefaultDialect,
			DSN:             DefaultDSN,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnectAttempts: 5,
			ConnectBackoff:  200 * time.Millisecond,
			Settings: map[string]string{
				"max_execution_time": "60",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
