// Package conf loads and owns the process configuration. Settings are
// resolved once at startup (config file, environment, defaults, in that
// order of precedence) and passed explicitly into the components that need
// them.
package conf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/screwnvim/screw-server/internal/errors"
)

// ServerSettings holds the HTTP bind configuration.
type ServerSettings struct {
	Host string // Bind address
	Port int    // Bind port
	Name string // Server name reported by the health endpoint
}

// DatabaseSettings holds the datastore configuration. URL selects the driver
// by scheme: postgres:// and postgresql:// for PostgreSQL, mysql:// for
// MySQL, anything else is treated as an SQLite file path.
type DatabaseSettings struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    string // Go duration string, e.g. "1h"
	LogQueries         bool   // Log every SQL statement at debug level
	SlowQueryThreshold string // Go duration string, e.g. "200ms"
}

// LogFileSettings configures the optional rotated log files per service.
type LogFileSettings struct {
	Enabled    bool
	Dir        string // Directory for per-service log files
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LogSettings holds logging configuration.
type LogSettings struct {
	Level  string // trace, debug, info, warn, error
	Format string // text or json
	File   LogFileSettings
}

// MetricsSettings holds Prometheus exposition configuration.
type MetricsSettings struct {
	Enabled bool
}

// SentrySettings holds optional error telemetry configuration. Disabled
// unless both Enabled is true and DSN is set.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings is the root configuration struct.
type Settings struct {
	Debug bool // Enables debug-level behavior across components

	Server   ServerSettings
	Database DatabaseSettings
	Log      LogSettings
	Metrics  MetricsSettings
	Sentry   SentrySettings

	// Version is injected at build time, not read from config
	Version string `mapstructure:"-"`
}

// Database driver identifiers resolved from the URL scheme.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DatabaseDriver resolves the driver from the configured database URL.
func (s *Settings) DatabaseDriver() string {
	u := strings.ToLower(strings.TrimSpace(s.Database.URL))
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(u, "mysql://"):
		return DriverMySQL
	default:
		return DriverSQLite
	}
}

// DatabaseDSN converts the configured URL into the DSN shape the selected
// driver expects. Postgres takes the URL verbatim (pgx parses URLs), MySQL
// needs the go-sql-driver format, SQLite takes the path as-is.
func (s *Settings) DatabaseDSN() (string, error) {
	raw := strings.TrimSpace(s.Database.URL)
	switch s.DatabaseDriver() {
	case DriverPostgres:
		return raw, nil
	case DriverMySQL:
		u, err := url.Parse(raw)
		if err != nil {
			return "", errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "parse_database_url").
				Build()
		}
		host := u.Host
		if u.Port() == "" {
			host = u.Hostname() + ":3306"
		}
		password, _ := u.User.Password()
		dbName := strings.TrimPrefix(u.Path, "/")
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			u.User.Username(), password, host, dbName), nil
	default:
		return raw, nil
	}
}

// RedactedDatabaseURL returns the database URL safe for logging.
func (s *Settings) RedactedDatabaseURL() string {
	return errors.ScrubMessage(s.Database.URL)
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance and stores it as the process-wide instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values, environment bindings and
// the optional configuration file.
func initViper() error {
	viper.SetConfigName("screw")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		return err
	}

	// A missing config file is fine, the service runs on defaults plus
	// environment overrides
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
	}

	return nil
}

// GetDefaultConfigPaths returns the OS-specific search paths for screw.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get_executable_path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get_home_directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			".",
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "screw-server"),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", "screw-server"),
			"/etc/screw-server",
			exeDir,
		}
	}

	return configPaths, nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the process-wide settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
				os.Exit(1)
			}
		}
	})
	return GetSettings()
}
