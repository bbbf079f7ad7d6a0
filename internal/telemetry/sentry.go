// Package telemetry wires optional Sentry error reporting into the
// application. Reporting is strictly opt-in, nothing is sent unless the
// operator enables it and supplies a DSN.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/errors"
	"github.com/screwnvim/screw-server/internal/logging"
)

// InitSentry initializes the Sentry SDK and registers it as the error
// reporting sink. A disabled or unconfigured Sentry section is not an
// error, the server simply runs without telemetry.
func InitSentry(settings *conf.Settings) error {
	log := logging.ForService("telemetry")

	if !settings.Sentry.Enabled {
		log.Info("Error telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.DSN == "" {
		log.Warn("Error telemetry enabled but no DSN configured, telemetry stays off")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.DSN,
		SampleRate: 1.0,
		Debug:      false,

		// Privacy-compliant settings: no stack traces, no hostname
		AttachStacktrace: false,
		Environment:      "production",
		ServerName:       "",

		Release: fmt.Sprintf("screw-server@%s", settings.Version),

		BeforeSend: applyPrivacyFilters,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("server_name_config", settings.Server.Name)
		scope.SetTag("db_driver", settings.DatabaseDriver())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	log.Info("Error telemetry initialized")
	return nil
}

// applyPrivacyFilters strips user data, hostnames and credential-bearing
// strings from an event before it leaves the process.
func applyPrivacyFilters(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

// Flush drains buffered events before shutdown. Safe to call when Sentry
// was never initialized.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
