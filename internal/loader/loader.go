// Package loader reads the perfres run configuration from YAML.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	defaults "github.com/xtxerr/perfres/config"
	"github.com/xtxerr/perfres/internal/errors"
)

// Config is the run configuration.
type Config struct {
	// DB is the DuckDB results store path. Empty opens an in-memory store.
	DB string `yaml:"db"`

	// ArchiveDir is the directory for local result cache files.
	ArchiveDir string `yaml:"archive_dir"`

	// Baseline is the baseline build name used as regression reference.
	Baseline string `yaml:"baseline"`

	// Current is the build name under evaluation.
	Current string `yaml:"current"`

	// Milestones are the build name prefixes used for cross-build
	// statistics.
	Milestones []string `yaml:"milestones"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Export configures the parquet statistics export.
	Export ExportConfig `yaml:"export"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// JSON switches output to JSON format.
	JSON bool `yaml:"json"`
}

// ExportConfig configures the parquet statistics export.
type ExportConfig struct {
	// Path of the export file. Empty disables the export.
	Path string `yaml:"path"`

	// Compression codec: "zstd", "snappy", "lz4", "gzip", "none".
	Compression string `yaml:"compression"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		DB:         defaults.DefaultDBPath,
		ArchiveDir: defaults.DefaultArchiveDir,
		Milestones: append([]string(nil), defaults.DefaultMilestonePrefixes...),
		Log:        LogConfig{Level: "info"},
		Export:     ExportConfig{Compression: defaults.DefaultExportCompression},
	}
}

// Load reads and validates a configuration file. Defaults are applied for
// omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := errors.NewValidationErrors()

	if c.Baseline == "" {
		v.AddMissing("baseline")
	}
	if c.Current == "" {
		v.AddMissing("current")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		v.AddField("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch c.Export.Compression {
	case "", "zstd", "snappy", "lz4", "gzip", "none":
	default:
		v.AddField("export.compression", fmt.Sprintf("unknown codec %q", c.Export.Compression))
	}
	for _, p := range c.Milestones {
		if p == "" {
			v.AddField("milestones", "empty prefix")
		}
	}

	return v.Err()
}
