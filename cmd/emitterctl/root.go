package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/emitter/pkg/emitter/config"
	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
)

// cliConfig holds values shared by every subcommand.
type cliConfig struct {
	configPath string
	envFile    string
	driver     string
	path       string
	logLevel   string
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:           "emitterctl",
		Short:         "Validate emitter configs and inspect dead letters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.envFile != "" {
				if err := godotenv.Load(cfg.envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			var level slog.Level
			if err := level.UnmarshalText([]byte(cfg.logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", cfg.logLevel, err)
			}
			cfg.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&cfg.envFile, "env-file", "", "Load EMITTER_* variables from a dotenv file")

	root.AddCommand(newValidateCmd(cfg), newDeadLettersCmd(cfg))
	return root
}

// openStore resolves the dead-letter store from --config (or the environment
// when no file is given), then --driver and --path overrides.
func (c *cliConfig) openStore() (deadletter.Store, error) {
	settings := config.Default()
	if err := settings.ApplyEnv(); err != nil {
		return nil, err
	}
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}
	if c.driver != "" {
		settings.DeadLetter.Driver = c.driver
	}
	if c.path != "" {
		settings.DeadLetter.Path = c.path
		if settings.DeadLetter.Driver == "" {
			settings.DeadLetter.Driver = config.DriverSQLite
		}
	}
	if settings.DeadLetter.Driver == "" {
		return nil, errors.New("no dead letter store configured: pass --config or --path")
	}

	c.logger.Debug("opening dead letter store",
		slog.String("driver", settings.DeadLetter.Driver),
		slog.String("path", settings.DeadLetter.Path),
	)
	return deadletter.Open(settings.DeadLetter.Driver, settings.DeadLetter.Path)
}
