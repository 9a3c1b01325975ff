// Package config loads the daemon configuration: defaults, overridden by an
// optional YAML file, overridden by environment variables. Env always wins so
// a deployed config file never pins a value the operator exported.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the full inkpad configuration.
type Config struct {
	// Port is the control server port.
	Port int `yaml:"port"`
	// DataDir is where inkpad keeps its state (library database).
	DataDir string `yaml:"data_dir"`
	// LibraryDB is the recent-projects database path. Empty means
	// <data_dir>/library.db.
	LibraryDB string `yaml:"library_db"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Port:     7100,
		DataDir:  defaultDataDir(),
		LogLevel: "info",
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".inkpad")
	}
	return ".inkpad"
}

// Load builds the effective configuration. path names a YAML file; "" skips
// the file layer. A named file that is missing is an error, unreadable YAML
// too.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INKPAD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("INKPAD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("INKPAD_LIBRARY_DB"); v != "" {
		c.LibraryDB = v
	}
	if v := os.Getenv("INKPAD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks value sanity.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// Addr returns the control listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// LibraryPath returns the effective library database path.
func (c *Config) LibraryPath() string {
	if c.LibraryDB != "" {
		return c.LibraryDB
	}
	return filepath.Join(c.DataDir, "library.db")
}
