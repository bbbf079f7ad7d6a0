// Package datastore provides logging infrastructure for database operations
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/screwnvim/screw-server/internal/errors"
	"github.com/screwnvim/screw-server/internal/logging"
)

// Package-level logger for datastore operations
var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar) // Dynamic level control
	loggerCloseFunc   func() error
	loggerOnce        sync.Once
	loggerMu          sync.RWMutex

	// defaultLogPath follows the project-wide convention of a "logs/"
	// directory so all per-service files land in one place.
	defaultLogPath = "logs/datastore.log"
)

// InitializeLogger initializes the datastore file logger. Safe to call
// multiple times, initialization happens only once. On failure the package
// falls back to the console logger instead of failing the caller.
func InitializeLogger(logFilePath string, rotation logging.FileRotation) error {
	var initErr error

	loggerOnce.Do(func() {
		if logFilePath == "" {
			logFilePath = defaultLogPath
		}

		datastoreLevelVar.Set(slog.LevelInfo)

		var err error
		datastoreLogger, loggerCloseFunc, err = logging.NewFileLogger(logFilePath, "datastore", datastoreLevelVar, rotation)
		if err != nil {
			datastoreLogger = fallbackLogger()
			loggerCloseFunc = func() error { return nil }

			initErr = errors.Newf("datastore: failed to initialize file logger: %v", err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("log_file", logFilePath).
				Context("operation", "logger_initialization").
				Build()
		}
	})

	return initErr
}

// fallbackLogger returns the console logger scoped to this service.
func fallbackLogger() *slog.Logger {
	if l := logging.ForService("datastore"); l != nil {
		return l
	}
	return slog.Default().With("service", "datastore")
}

// getLogger returns the package logger, falling back to the console logger
// when no file logger has been initialized.
func getLogger() *slog.Logger {
	loggerMu.RLock()
	if datastoreLogger != nil {
		defer loggerMu.RUnlock()
		return datastoreLogger
	}
	loggerMu.RUnlock()

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if datastoreLogger == nil {
		datastoreLogger = fallbackLogger()
	}
	return datastoreLogger
}

// CloseLogger closes the datastore log file
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}

// SetLogLevel sets the log level for the datastore logger
func SetLogLevel(level slog.Level) {
	datastoreLevelVar.Set(level)
}

// GormLogger implements GORM's logger interface with structured logging and metrics
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      logger.LogLevel
	metrics       dbMetricsRecorder
}

// dbMetricsRecorder is the slice of the metrics surface the gorm logger needs.
type dbMetricsRecorder interface {
	RecordDbOperation(operation, table, status string)
	RecordDbOperationDuration(operation, table string, seconds float64)
	RecordDbOperationError(operation, table, errorType string)
}

// NewGormLogger creates a new GORM logger instance. metrics may be nil.
func NewGormLogger(slowThreshold time.Duration, logLevel logger.LogLevel, metrics dbMetricsRecorder) *GormLogger {
	return &GormLogger{
		SlowThreshold: slowThreshold,
		LogLevel:      logLevel,
		metrics:       metrics,
	}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info implements logger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Info {
		getLogger().InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Warn implements logger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Warn {
		getLogger().WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Error implements logger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= logger.Error {
		getLogger().ErrorContext(ctx, "GORM error",
			"msg", fmt.Sprintf(msg, data...))

		if l.metrics != nil {
			l.metrics.RecordDbOperationError("gorm_internal", "unknown", "gorm_error")
		}
	}
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	operation, table := parseSQLOperation(sql)

	if l.metrics != nil {
		l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		getLogger().ErrorContext(ctx, "Database query failed",
			"error", err,
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "error")
			l.metrics.RecordDbOperationError(operation, table, categorizeError(err))
		}

	case elapsed > l.SlowThreshold && l.SlowThreshold != 0:
		getLogger().WarnContext(ctx, "Slow query detected",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows,
			"threshold", l.SlowThreshold)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}

	case l.LogLevel >= logger.Info:
		getLogger().DebugContext(ctx, "Query executed",
			"sql", sql,
			"duration", elapsed,
			"rows_affected", rows)

		if l.metrics != nil {
			l.metrics.RecordDbOperation(operation, table, "success")
		}
	}
}

// parseSQLOperation extracts the operation and target table from a SQL
// statement for metric labels. Best effort, unknown on anything unusual.
func parseSQLOperation(sql string) (operation, table string) {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return "unknown", "unknown"
	}

	operation = strings.ToLower(fields[0])
	table = "unknown"

	tableAfter := ""
	switch operation {
	case "select", "delete":
		tableAfter = "from"
	case "insert", "replace":
		tableAfter = "into"
	case "update":
		if len(fields) > 1 {
			table = normalizeTableName(fields[1])
		}
		return operation, table
	default:
		return operation, table
	}

	for i, f := range fields {
		if strings.EqualFold(f, tableAfter) && i+1 < len(fields) {
			table = normalizeTableName(fields[i+1])
			break
		}
	}
	return operation, table
}

// normalizeTableName strips quoting and trailing punctuation from a table token
func normalizeTableName(token string) string {
	token = strings.Trim(token, "`\"'")
	if idx := strings.IndexAny(token, "(,;"); idx >= 0 {
		token = token[:idx]
	}
	if token == "" {
		return "unknown"
	}
	return token
}
