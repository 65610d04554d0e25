// Package cmd defines the CLI commands for the harvester executable.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/filmdata/critic-harvester/internal/config"
	"github.com/filmdata/critic-harvester/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "critic-harvester",
		Short: "Collects critic reviews for a list of movies.",
		Long: `critic-harvester resolves each movie in a query set to its page on
the review source, walks the lazily-loaded critic review feed to the
end, and writes one row per review into per-year CSV files and
optional database and cloud sinks.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.critic-harvester.yaml)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newMergeFixesCmd())
	return cmd
}

// loadConfig resolves the config path and loads settings. A missing
// default file is fine; explicit --config paths must exist.
func loadConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return config.Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		candidate := filepath.Join(home, ".critic-harvester.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	return config.Load(path)
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
