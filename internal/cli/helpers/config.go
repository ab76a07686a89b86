// Package helpers holds the pieces shared by runmetrics subcommands.
package helpers

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/runmetrics/runmetrics/internal/config"
	"github.com/runmetrics/runmetrics/internal/logging"
)

// Persistent flag names registered on the root command.
const (
	FlagConfig   = "config"
	FlagLogLevel = "log-level"
	FlagPretty   = "pretty"
)

// AddGlobalFlags registers the flags every subcommand reads through
// LoadConfig.
func AddGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(FlagConfig, "", "Path to config file (default $"+config.ConfigEnvVar+" or runmetrics.yaml)")
	flags.String(FlagLogLevel, "", "Log level override (trace, debug, info, warn, error)")
	flags.Bool(FlagPretty, false, "Human readable log output")
}

// LoadConfig loads the configuration named by --config and builds the
// logger, applying the --log-level and --pretty overrides.
func LoadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)

	cfg, err := config.Load(config.ResolvePath(path))
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString(FlagLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if pretty, _ := cmd.Flags().GetBool(FlagPretty); pretty {
		cfg.Logging.Pretty = true
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	return cfg, logger, nil
}
