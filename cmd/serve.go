package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/logging"
	"github.com/screwnvim/screw-server/internal/observability"
	"github.com/screwnvim/screw-server/internal/server"
	"github.com/screwnvim/screw-server/internal/telemetry"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal before the process exits anyway.
const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command.
func serveCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation server",
		Long:  "Open the configured database and serve the annotation API until the process receives SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}
}

// runServe wires the process together: telemetry, metrics, datastore and the
// HTTP server, in that order. It blocks until a termination signal arrives
// and then shuts the pieces down in reverse order.
func runServe(settings *conf.Settings) error {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	// Flags are bound after conf.Load, validate the effective values.
	if err := conf.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Telemetry is optional, a failed init must not stop the server.
	if err := telemetry.InitSentry(settings); err != nil {
		logging.Warn("Telemetry initialization failed, continuing without it", "error", err)
	}
	defer telemetry.Flush(2 * time.Second)

	var metrics *observability.Metrics
	if settings.Metrics.Enabled {
		var err error
		metrics, err = observability.NewMetrics()
		if err != nil {
			logging.Warn("Metrics initialization failed, continuing without metrics", "error", err)
			metrics = nil
		}
	}

	if settings.Log.File.Enabled {
		rotation := logging.FileRotation{
			MaxSizeMB:  settings.Log.File.MaxSizeMB,
			MaxBackups: settings.Log.File.MaxBackups,
			MaxAgeDays: settings.Log.File.MaxAgeDays,
		}
		logPath := filepath.Join(settings.Log.File.Dir, "datastore.log")
		if err := datastore.InitializeLogger(logPath, rotation); err != nil {
			logging.Warn("Datastore file logger unavailable, using console logging", "error", err)
		}
	}
	if settings.Debug {
		datastore.SetLogLevel(slog.LevelDebug)
	}

	dataStore := datastore.New(settings, metrics.DatastoreMetrics())
	if err := dataStore.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeDataStore(dataStore)

	srv, err := server.New(settings, dataStore, metrics)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.Start()

	// Block until a termination signal arrives.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logging.Info("Shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}

	return nil
}

// closeDataStore attempts to close the database connection and logs the result.
func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		logging.Error("Failed to close database", "error", err)
	} else {
		logging.Info("Database closed")
	}
}
