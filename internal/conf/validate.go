// conf/validate.go

package conf

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateServerSettings(&settings.Server); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateLogSettings(&settings.Log); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSentrySettings(&settings.Sentry); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(settings *ServerSettings) error {
	var errs []string

	if settings.Port < 1 || settings.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server port must be between 1 and 65535, got %d", settings.Port))
	}
	if strings.TrimSpace(settings.Host) == "" {
		errs = append(errs, "server host must not be empty")
	}
	if strings.TrimSpace(settings.Name) == "" {
		errs = append(errs, "server name must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("server settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabaseSettings(settings *DatabaseSettings) error {
	var errs []string

	if strings.TrimSpace(settings.URL) == "" {
		errs = append(errs, "database url must not be empty")
	}
	if settings.MaxOpenConns < 1 {
		errs = append(errs, fmt.Sprintf("database maxopenconns must be positive, got %d", settings.MaxOpenConns))
	}
	if settings.MaxIdleConns < 0 {
		errs = append(errs, fmt.Sprintf("database maxidleconns must not be negative, got %d", settings.MaxIdleConns))
	}
	if settings.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(settings.ConnMaxLifetime); err != nil {
			errs = append(errs, fmt.Sprintf("database connmaxlifetime is not a valid duration: %v", err))
		}
	}
	if settings.SlowQueryThreshold != "" {
		if _, err := time.ParseDuration(settings.SlowQueryThreshold); err != nil {
			errs = append(errs, fmt.Sprintf("database slowquerythreshold is not a valid duration: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("database settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogSettings(settings *LogSettings) error {
	var errs []string

	switch strings.ToLower(settings.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("log level must be one of trace, debug, info, warn, error, got '%s'", settings.Level))
	}

	switch strings.ToLower(settings.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log format must be text or json, got '%s'", settings.Format))
	}

	if settings.File.Enabled && strings.TrimSpace(settings.File.Dir) == "" {
		errs = append(errs, "log file dir must not be empty when file logging is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("log settings errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateSentrySettings(settings *SentrySettings) error {
	if settings.Enabled && strings.TrimSpace(settings.DSN) == "" {
		return fmt.Errorf("sentry settings errors: dsn must be set when sentry is enabled")
	}
	return nil
}

// ConnMaxLifetimeDuration returns the parsed connection lifetime, falling
// back to one hour on parse failure (validation warns before this point).
func (s *DatabaseSettings) ConnMaxLifetimeDuration() time.Duration {
	d, err := time.ParseDuration(s.ConnMaxLifetime)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SlowQueryThresholdDuration returns the parsed slow query threshold,
// falling back to 200ms.
func (s *DatabaseSettings) SlowQueryThresholdDuration() time.Duration {
	d, err := time.ParseDuration(s.SlowQueryThreshold)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}
