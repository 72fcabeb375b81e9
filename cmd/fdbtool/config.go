// Manages tool configuration stored in fdbtool.json.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// configFile is the configuration file name in the data directory.
const configFile = "fdbtool.json"

// Config stores the tool configuration.
// Loaded from fdbtool.json, created with defaults if missing.
type Config struct {
	// Git controls committing snapshots after every mutating command.
	Git GitConfig `json:"git"`

	// Journal is the SQL journal file name, relative to the data directory.
	// Empty disables journaling.
	Journal string `json:"journal"`

	// WatchIntervalMS is the minimum delay between two rebuilds in watch mode.
	WatchIntervalMS int `json:"watch_interval_ms"`
}

// GitConfig defines snapshot versioning.
type GitConfig struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Validate checks that the git identity is set when versioning is enabled.
func (g *GitConfig) Validate() error {
	if !g.Enabled {
		return nil
	}
	if g.Name == "" {
		return errors.New("name is required")
	}
	if g.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Git: GitConfig{
			Enabled: true,
			Name:    "fdbtool",
			Email:   "fdbtool@localhost",
		},
		Journal:         "mirror.jsonl",
		WatchIntervalMS: 500,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Git.Validate(); err != nil {
		return fmt.Errorf("git: %w", err)
	}
	if c.Journal != "" && filepath.Base(c.Journal) != c.Journal {
		return fmt.Errorf("journal must be a file name, got %q", c.Journal)
	}
	if c.WatchIntervalMS < 0 {
		return errors.New("watch_interval_ms must be non-negative")
	}
	return nil
}

// WatchInterval returns WatchIntervalMS as a duration.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.WatchIntervalMS) * time.Millisecond
}

// LoadConfig loads configuration from dataDir/fdbtool.json.
// Creates the file with defaults if it doesn't exist.
func LoadConfig(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, configFile)
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the configuration to dataDir/fdbtool.json.
func (c *Config) Save(dataDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dataDir, configFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil { //nolint:gosec // G306: config holds no secret
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}
	return nil
}
