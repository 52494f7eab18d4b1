package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the tool configuration.
type Config struct {
	Paths   PathsConfig   `koanf:"paths"`
	Mount   MountConfig   `koanf:"mount"`
	Logging LoggingConfig `koanf:"logging"`
}

// PathsConfig names the on-disk locations the tool manages.
type PathsConfig struct {
	// ThoughtsDir is the root under which clones and workspace state live.
	ThoughtsDir string `koanf:"thoughts_dir"`

	// ClonesDir holds auto-managed repository clones.
	ClonesDir string `koanf:"clones_dir"`

	// MappingFile is the URL-to-path mapping document.
	MappingFile string `koanf:"mapping_file"`
}

// MountConfig tunes union mount behavior.
type MountConfig struct {
	Retries    uint     `koanf:"retries"`
	Timeout    Duration `koanf:"timeout"`
	AllowOther bool     `koanf:"allow_other"`
	Extra      []string `koanf:"extra_options"`
}

// LoggingConfig selects log level and format. Level strings include the
// custom "trace" below debug.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if cfg.Paths.ThoughtsDir == "" {
		cfg.Paths.ThoughtsDir = filepath.Join(home, ".thoughts")
	}
	if cfg.Paths.ClonesDir == "" {
		cfg.Paths.ClonesDir = filepath.Join(cfg.Paths.ThoughtsDir, "clones")
	}
	if cfg.Paths.MappingFile == "" {
		cfg.Paths.MappingFile = filepath.Join(cfg.Paths.ThoughtsDir, "mappings.json")
	}

	if cfg.Mount.Retries == 0 {
		cfg.Mount.Retries = 3
	}
	if cfg.Mount.Timeout == 0 {
		cfg.Mount.Timeout = Duration(30 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	return nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Paths.ThoughtsDir) {
		return fmt.Errorf("paths.thoughts_dir must be absolute, got %q", c.Paths.ThoughtsDir)
	}
	if !filepath.IsAbs(c.Paths.ClonesDir) {
		return fmt.Errorf("paths.clones_dir must be absolute, got %q", c.Paths.ClonesDir)
	}
	if !filepath.IsAbs(c.Paths.MappingFile) {
		return fmt.Errorf("paths.mapping_file must be absolute, got %q", c.Paths.MappingFile)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
