// Package config holds the server configuration and its loaders.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML or JSON file, and FIDELITY_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ironsheep/image-fidelity-mcp/internal/masks"
)

// EnvPrefix prefixes every environment override, e.g. FIDELITY_LOG_LEVEL.
const EnvPrefix = "FIDELITY"

// Config is the complete server configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format" json:"log_format"`

	// Parallel enables row-parallel pixel loops.
	Parallel bool `yaml:"parallel" json:"parallel"`

	// Mask holds the default mask synthesis options. Tool calls may override
	// them per request.
	Mask masks.Options `yaml:"mask" json:"mask"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Parallel:  true,
		Mask:      masks.DefaultOptions(),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q (supported: text, json)", c.LogFormat)
	}

	if err := c.Mask.Validate(); err != nil {
		return fmt.Errorf("invalid mask options: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %q (supported: debug, info, warn, error)", name)
	}
}

// NewLogger builds a logger writing to w at the configured level and format.
// The level must already have passed Validate; unknown values fall back to info.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Load builds a configuration from defaults, the file at path (if any) and
// the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := NewLoader(EnvPrefix).Load(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
