// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// Global telemetry reporter (nil when telemetry is disabled)
var globalTelemetryReporter TelemetryReporter

// hasActiveReporting lets Build skip component detection when nothing consumes it
var hasActiveReporting atomic.Bool

// SetTelemetryReporter sets the global telemetry reporter
func SetTelemetryReporter(reporter TelemetryReporter) {
	globalTelemetryReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

// GetTelemetryReporter returns the current telemetry reporter
func GetTelemetryReporter() TelemetryReporter {
	return globalTelemetryReporter
}

// reportToTelemetry reports an error to the configured telemetry system
func reportToTelemetry(ee *EnhancedError) {
	if globalTelemetryReporter != nil && globalTelemetryReporter.IsEnabled() {
		globalTelemetryReporter.ReportError(ee)
	}
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with credentials scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	scrubbedMessage := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	errorTitle := generateErrorTitle(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", errorTitle)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("error_type", fmt.Sprintf("%T", ee.Err))

		for key, value := range ee.GetContext() {
			if strValue, ok := value.(string); ok {
				value = ScrubMessage(strValue)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		scope.SetLevel(getErrorLevel(ee.Category))
		scope.SetFingerprint([]string{errorTitle, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = scrubbedMessage
		event.Level = getErrorLevel(ee.Category)
		event.Exception = []sentry.Exception{{
			Type:  errorTitle,
			Value: scrubbedMessage,
		}}

		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// generateErrorTitle creates a stable, grouping-friendly title for Sentry
func generateErrorTitle(ee *EnhancedError) string {
	var titleParts []string

	if component := ee.GetComponent(); component != "" && component != ComponentUnknown {
		titleParts = append(titleParts, titleCase(component))
	}
	if ee.Category != "" {
		titleParts = append(titleParts, titleCase(strings.ReplaceAll(string(ee.Category), "-", " ")))
	}
	if operation, ok := ee.GetContext()["operation"].(string); ok && operation != "" {
		titleParts = append(titleParts, titleCase(strings.ReplaceAll(operation, "_", " ")))
	}

	if len(titleParts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}

	return strings.Join(titleParts, " ")
}

// getErrorLevel maps error categories to Sentry severity levels
func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryValidation, CategoryNotFound, CategoryConflict:
		return sentry.LevelWarning // Expected client-driven conditions
	case CategoryDatabase, CategorySchema:
		return sentry.LevelError
	case CategoryConfiguration, CategorySystem:
		return sentry.LevelError
	default:
		return sentry.LevelError
	}
}

// titleCase capitalizes the first letter of each word
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Credential scrubbing. Error messages routinely carry database DSNs
// (connection failures include the full URL), so userinfo and query
// parameters are redacted before anything leaves the process.

var (
	urlUserinfoRegex = regexp.MustCompile(`(\w+://[^:/@\s]+):[^@\s]+@`)
	queryParamRegex  = regexp.MustCompile(`([?&](?:password|passwd|secret|token|api[_-]?key)=)[^&\s]+`)
)

// ScrubMessage redacts credentials embedded in connection strings and URLs
func ScrubMessage(message string) string {
	scrubbed := urlUserinfoRegex.ReplaceAllString(message, "$1:[REDACTED]@")
	return queryParamRegex.ReplaceAllString(scrubbed, "$1[REDACTED]")
}
