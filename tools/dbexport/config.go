package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/errors"
)

// Config holds the configuration for the export tool.
type Config struct {
	// Source database
	SQLitePath string

	// Target database URL, mysql:// or postgres://
	TargetURL string

	// Migration options
	BatchSize   int
	DropTables  bool
	Clean       bool
	AutoMigrate bool
	SkipVerify  bool
	Verbose     bool

	// Config file path for fallback
	ConfigPath string
}

// Load validates the configuration, falling back to screw.yaml for the
// target URL when the flag is absent.
func (c *Config) Load() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("--sqlite-path is required")
	}

	// Validate SQLite path exists
	if _, err := os.Stat(c.SQLitePath); os.IsNotExist(err) {
		return fmt.Errorf("SQLite database not found: %s", c.SQLitePath)
	}

	// The server config usually points at the shared database already, use
	// it when no explicit target was given
	if c.TargetURL == "" {
		if err := c.loadFromConfigFile(); err != nil {
			return fmt.Errorf("--target-url is required (or provide screw.yaml): %w", err)
		}
	}
	if c.TargetURL == "" {
		return fmt.Errorf("--target-url is required (or provide screw.yaml with database.url)")
	}

	// The target must be a server database, not another SQLite file
	if c.targetSettings().DatabaseDriver() == conf.DriverSQLite {
		return fmt.Errorf("target must be a mysql:// or postgres:// URL, got %q", c.TargetURL)
	}

	// Validate batch size
	if c.BatchSize < 1 {
		return fmt.Errorf("batch-size must be at least 1")
	}
	if c.BatchSize > 10000 {
		return fmt.Errorf("batch-size too large (max 10000)")
	}

	return nil
}

// loadFromConfigFile reads the target database URL from screw.yaml.
func (c *Config) loadFromConfigFile() error {
	v := viper.New()

	// Determine config file path
	configPath := c.ConfigPath
	if configPath == "" {
		// Search the same locations the server does
		if paths, err := conf.GetDefaultConfigPaths(); err == nil {
			for _, dir := range paths {
				p := filepath.Join(dir, "screw.yaml")
				if _, statErr := os.Stat(p); statErr == nil {
					configPath = p
					break
				}
			}
		}

		// Fall back to current directory if no config was found
		if configPath == "" {
			configPath = "screw.yaml"
		}
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if url := v.GetString("database.url"); url != "" {
		c.TargetURL = url
	}

	return nil
}

// targetSettings wraps the target URL in a Settings value so driver and DSN
// resolution matches the server exactly.
func (c *Config) targetSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Database.URL = c.TargetURL
	return s
}

// SanitizedTargetURL returns the target URL with credentials masked for logging.
func (c *Config) SanitizedTargetURL() string {
	return errors.ScrubMessage(c.TargetURL)
}
