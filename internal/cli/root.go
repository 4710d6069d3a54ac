// Package cli wires the racedb commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/koustreak/racedb/internal/config"
	"github.com/koustreak/racedb/internal/logger"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "racedb",
		Short: "Race record persistence for game servers",
		Long: `racedb brokers a fixed pool of database connections (MySQL, PostgreSQL or
SQLite) for race records, team records, saves, maps and points, creating the
tables on first connect when setup is enabled.

Exit Codes:
  0  - Success
  1  - General error
  10 - Invalid configuration
  11 - Database connection failed
  12 - Schema setup failed
  13 - Backend not compiled in`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", config.DefaultFileName, "path to the config file")
	root.PersistentFlags().StringSlice("env-file", nil, "env files loaded before the config is read (default .env if present)")

	root.AddCommand(
		newServeCommand(),
		newSetupCommand(),
		newPrintCommand(),
		newDriversCommand(),
	)
	return root
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig loads env files and the config named by the persistent flags,
// then installs the configured logger as the global one.
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	envFiles, err := cmd.Flags().GetStringSlice("env-file")
	if err != nil {
		return nil, nil, err
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, nil, err
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		TimeFormat: "rfc3339",
		Output:     os.Stderr,
	})
	logger.SetGlobal(log)
	return cfg, log, nil
}
