// internal/api/api.go
package api

import (
	"crypto/rand"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/datastore"
	"github.com/screwnvim/screw-server/internal/errors"
	"github.com/screwnvim/screw-server/internal/logging"
	"github.com/screwnvim/screw-server/internal/observability"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	logger         *log.Logger
	apiLogger      *slog.Logger           // Structured logger for API operations
	apiLevelVar    *slog.LevelVar         // Dynamic level control
	apiLoggerClose func() error           // Function to close the log file
	metrics        *observability.Metrics // Shared metrics instance, may be nil

	statsCache *cache.Cache // Cache for project statistics queries
	startTime  *time.Time
}

// New creates a new API controller and registers all routes on the given
// Echo instance. metrics may be nil when Prometheus exposition is disabled.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics) (*Controller, error) {
	return NewWithOptions(e, ds, settings, logger, metrics, true)
}

// NewWithOptions creates a new API controller with optional route
// initialization. Set initializeRoutes to false in tests that mount
// handlers individually.
func NewWithOptions(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	logger *log.Logger, metrics *observability.Metrics, initializeRoutes bool) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:     e,
		DS:       ds,
		Settings: settings,
		logger:   logger,
		metrics:  metrics,
		// Stats are cheap to recompute but get hammered by editor polling,
		// a short TTL keeps counts fresh while absorbing bursts.
		statsCache: cache.New(30*time.Second, time.Minute),
	}

	// Initialize structured logger for API requests
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	if settings.Debug {
		c.apiLevelVar.Set(slog.LevelDebug)
	}

	if settings.Log.File.Enabled {
		apiLogPath := filepath.Join(settings.Log.File.Dir, "web.log")
		rotation := logging.FileRotation{
			MaxSizeMB:  settings.Log.File.MaxSizeMB,
			MaxBackups: settings.Log.File.MaxBackups,
			MaxAgeDays: settings.Log.File.MaxAgeDays,
		}
		apiLogger, closeFunc, err := logging.NewFileLogger(apiLogPath, "api", c.apiLevelVar, rotation)
		if err != nil {
			logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
			// Fall back to a disabled logger that still respects the level var
			fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
			c.apiLogger = slog.New(fbHandler).With("service", "api")
			c.apiLoggerClose = func() error { return nil }
		} else {
			c.apiLogger = apiLogger
			c.apiLoggerClose = closeFunc
			logger.Printf("API structured logging initialized to %s", apiLogPath)
		}
	} else {
		c.apiLogger = logging.ForService("api")
		c.apiLoggerClose = func() error { return nil }
	}

	// Create the API group
	c.Group = e.Group("/api")

	// Configure middlewares
	c.Group.Use(middleware.Recover())       // Recover should be early
	c.Group.Use(middleware.CORS())          // Editor clients connect cross-origin
	c.Group.Use(middleware.BodyLimit("1M")) // Bulk replace payloads stay well under this
	c.Group.Use(c.MetricsMiddleware())
	c.Group.Use(c.LoggingMiddleware())

	now := time.Now()
	c.startTime = &now

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"note routes", c.initNoteRoutes},
		{"reply routes", c.initReplyRoutes},
		{"stats routes", c.initStatsRoutes},
	}

	for _, initializer := range routeInitializers {
		c.Debug("Initializing %s...", initializer.name)

		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("PANIC during %s initialization: %v", initializer.name, r)
				}
			}()

			initializer.fn()
		}()
	}
}

// HealthCheckResponse is the liveness payload reported to editor clients.
type HealthCheckResponse struct {
	Status    string `json:"status"`
	Server    string `json:"server"`
	Timestamp string `json:"timestamp"`
}

// HealthCheck handles the API health check endpoint
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthCheckResponse{
		Status:    "ok",
		Server:    c.Settings.Server.Name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// LoggingMiddleware creates a middleware function that logs API requests
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			// LogAttrs avoids allocations when the level is disabled
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// MetricsMiddleware records request counts, durations and response sizes.
// The route pattern is used as the path label, never the raw URL, to keep
// label cardinality bounded.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil {
				return next(ctx)
			}

			c.metrics.HTTP.RequestStarted()
			start := time.Now()

			err := next(ctx)

			res := ctx.Response()
			c.metrics.HTTP.RecordRequest(ctx.Request().Method, ctx.Path(),
				res.Status, time.Since(start).Seconds(), res.Size)
			c.metrics.HTTP.RequestFinished()

			return err
		}
	}
}

// ErrorResponse is the error payload returned by every failing endpoint.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a unique identifier for error tracking using
// cryptographic randomness
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}

	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	ip := ctx.RealIP()
	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		var errorStr string
		if err != nil {
			errorStr = err.Error()
		} else {
			errorStr = message
		}

		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorStr,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordRequestError(ctx.Request().Method, ctx.Path(), errorTypeForCode(code))
	}

	return ctx.JSON(code, errorResp)
}

// HandleDatastoreError maps a repository error onto the matching HTTP
// response. notFoundMessage supplies the resource-specific 404 text.
func (c *Controller) HandleDatastoreError(ctx echo.Context, err error, notFoundMessage string) error {
	switch {
	case errors.IsNotFound(err):
		return c.HandleError(ctx, err, notFoundMessage, http.StatusNotFound)
	case errors.IsValidation(err):
		return c.HandleError(ctx, err, "Invalid request", http.StatusBadRequest)
	case errors.IsCategory(err, errors.CategoryConflict):
		return c.HandleError(ctx, err, "Conflicting identifiers in request", http.StatusConflict)
	default:
		return c.HandleError(ctx, err, "Database operation failed", http.StatusInternalServerError)
	}
}

// errorTypeForCode buckets status codes for the request error metric
func errorTypeForCode(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "not_found"
	case code == http.StatusConflict:
		return "conflict"
	case code >= 400 && code < 500:
		return "validation"
	default:
		return "system"
	}
}

// Shutdown performs cleanup of the resources used by the API controller
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}

	if c.statsCache != nil {
		c.statsCache.Flush()
	}

	c.Debug("API Controller shutting down")
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)

		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}
