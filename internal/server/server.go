// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/screwnvim/screw-server/internal/api"
	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/logging"
	"github.com/screwnvim/screw-server/internal/observability"
)

// Server encapsulates the Echo engine and the API controller.
type Server struct {
	Echo     *echo.Echo
	DS       datastore.Interface
	Settings *conf.Settings
	API      *api.Controller

	metrics *observability.Metrics
	logger  *slog.Logger
}

// New initializes the HTTP server with the given datastore. metrics may be
// nil when Prometheus exposition is disabled.
func New(settings *conf.Settings, dataStore datastore.Interface, metrics *observability.Metrics) (*Server, error) {
	s := &Server{
		Echo:     echo.New(),
		DS:       dataStore,
		Settings: settings,
		metrics:  metrics,
		logger:   logging.ForService("server"),
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	// Note payloads compress well, the listing endpoints return repetitive
	// JSON for editor-side caching.
	s.Echo.Use(middleware.Gzip())

	apiController, err := api.New(s.Echo, dataStore, settings, log.Default(), metrics)
	if err != nil {
		return nil, fmt.Errorf("initializing API controller: %w", err)
	}
	s.API = apiController

	if settings.Metrics.Enabled && metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It does not block, a
// failure to bind is fatal and reported through the error handler.
func (s *Server) Start() {
	errChan := make(chan error)

	go func() {
		addr := net.JoinHostPort(s.Settings.Server.Host, strconv.Itoa(s.Settings.Server.Port))
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.handleServerError(errChan)

	s.logger.Info("HTTP server started",
		"host", s.Settings.Server.Host,
		"port", s.Settings.Server.Port,
		"server_name", s.Settings.Server.Name)
}

// handleServerError listens for server errors. A listener that cannot
// serve leaves the process with nothing to do, so the error is fatal.
func (s *Server) handleServerError(errChan chan error) {
	for err := range errChan {
		logging.Fatal("HTTP server failed", "error", err)
	}
}

// Shutdown drains in-flight requests and stops the server. The context
// bounds how long draining may take.
func (s *Server) Shutdown(ctx context.Context) error {
	s.API.Shutdown()

	if err := s.Echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	return nil
}
