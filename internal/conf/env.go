// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation.
// These are the knobs editor-plugin deployments set without a config file.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"database.url", "DATABASE_URL", validateEnvDatabaseURL},
		{"server.host", "SCREW_HOST", nil},
		{"server.port", "SCREW_PORT", validateEnvPort},
		{"server.name", "SCREW_SERVER_NAME", nil},
		{"log.level", "SCREW_LOG_LEVEL", validateEnvLogLevel},
		{"sentry.dsn", "SCREW_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got '%s'", value)
}

func validateEnvDatabaseURL(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("database URL must not be empty")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	// Nested config keys map to underscore-separated environment names
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return bindEnvVars()
}
