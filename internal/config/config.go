// Package config handles sqlgraph configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the sqlgraph configuration file.
type Config struct {
	// Schema is the path of the topology file. Relative paths are resolved
	// against the config file's directory.
	Schema string `toml:"schema"`

	Database    DatabaseConfig    `toml:"database"`
	Dialect     DialectConfig     `toml:"dialect"`
	Materialize MaterializeConfig `toml:"materialize"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`

	// UI controls optional CLI theming preferences.
	UI UIConfig `toml:"ui"`
}

// DatabaseConfig names the database to run traversals against.
type DatabaseConfig struct {
	// DSN is a SQLite file path or a PostgreSQL connection string.
	DSN string `toml:"dsn"`
}

// DialectConfig selects and tunes the SQL dialect.
type DialectConfig struct {
	// Name is "sqlite" or "postgres".
	Name         string `toml:"name"`
	PublicSchema string `toml:"public_schema"`

	// InlineListThreshold is the largest within/without list rendered as
	// IN (...). Longer lists use a temporary table when BulkMembership is on.
	InlineListThreshold int  `toml:"inline_list_threshold"`
	BulkMembership      bool `toml:"bulk_membership"`
}

// MaterializeConfig tunes result iteration.
type MaterializeConfig struct {
	BatchSize int `toml:"batch_size"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is a logrus level name: debug, info, warn, error.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `toml:"addr"`
}

// UIConfig represents optional CLI theming preferences.
type UIConfig struct {
	// Accent is an optional accent color for CLI output and markdown rendering.
	// Supported values are ANSI color codes ("0" to "255") or hex colors ("#RRGGBB").
	Accent string `toml:"accent"`

	// CodeTheme sets the Glamour/Chroma theme used for rendered SQL blocks.
	// Example values: "monokai", "dracula", "github", "nord".
	CodeTheme string `toml:"code_theme"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Schema:   "topology.yaml",
		Database: DatabaseConfig{DSN: "graph.db"},
		Dialect: DialectConfig{
			Name:                "sqlite",
			InlineListThreshold: 1000,
			BulkMembership:      true,
		},
		Materialize: MaterializeConfig{BatchSize: 500},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks values a typo could silently break.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Dialect.Name) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("dialect.name: unknown dialect %q", c.Dialect.Name)
	}
	if c.Dialect.InlineListThreshold < 0 {
		return fmt.Errorf("dialect.inline_list_threshold must not be negative, got %d", c.Dialect.InlineListThreshold)
	}
	if c.Materialize.BatchSize < 0 {
		return fmt.Errorf("materialize.batch_size must not be negative, got %d", c.Materialize.BatchSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format: expected text or json, got %q", c.Log.Format)
	}
	return nil
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	return LoadOrDefault(DefaultPath())
}

// LoadOrDefault loads path, or returns the default config when path does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from a specific path. Keys missing from
// the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if config.Schema != "" && !filepath.IsAbs(config.Schema) {
		config.Schema = filepath.Join(filepath.Dir(path), config.Schema)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// DefaultPath returns the default config file path.
// Checks ~/.config/sqlgraph/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "sqlgraph", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "sqlgraph", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}
