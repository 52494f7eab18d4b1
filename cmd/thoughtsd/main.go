// Package main implements the thoughtsd CLI for managing git-backed
// thoughts workspaces.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thoughtsd/internal/config"
	"github.com/fyrsmithlabs/thoughtsd/internal/logging"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thoughtsd",
	Short: "Manage git-backed thoughts workspaces",
	Long: `thoughtsd keeps per-branch working notes in a git-backed workspace:
it clones the configured thoughts repository, mounts it into the project,
and maintains the branch-scoped directory layout.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/thoughtsd/config.yaml)")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(doctorCmd)
}

// setup loads configuration and builds the root logger shared by all
// subcommands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
	}
	logCfg := logging.NewDefaultConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Logging.Format

	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Underlying(), nil
}
