// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/screwnvim/screw-server/internal/conf"
	"github.com/screwnvim/screw-server/internal/errors"
	"github.com/screwnvim/screw-server/internal/observability/metrics"
)

// Interface abstracts the underlying database implementation and defines the
// operations the annotation store exposes.
type Interface interface {
	Open() error
	Close() error

	// Note repository
	NotesByProject(ctx context.Context, projectName string) ([]Note, error)
	NotesByFile(ctx context.Context, projectName, filePath string) ([]Note, error)
	NotesByLine(ctx context.Context, projectName, filePath string, lineNumber int) ([]Note, error)
	NoteByID(ctx context.Context, id string) (*Note, error)
	CreateNote(ctx context.Context, note *Note) error
	UpdateNote(ctx context.Context, id string, update *NoteUpdate) (*Note, error)
	DeleteNote(ctx context.Context, id string) error
	ClearProject(ctx context.Context, projectName string) (int64, error)
	ReplaceProjectNotes(ctx context.Context, projectName string, notes []Note) (int64, error)
	CountNotes(ctx context.Context, projectName string) (int64, error)

	// Reply repository
	AppendReply(ctx context.Context, parentID string, reply *Reply) error
}

// NoteUpdate carries the mutable field set applied by UpdateNote. Every
// field is written as supplied, the identifier and creation timestamp are
// immutable.
type NoteUpdate struct {
	FilePath    string
	LineNumber  int
	Author      string
	Comment     string
	Description string
	CWE         string
	State       string
	Severity    string
	Source      string
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB       *gorm.DB
	Settings *conf.Settings
	metrics  *metrics.DatastoreMetrics
}

// New creates a store for the driver selected by the configured database
// URL. The metrics parameter may be nil when Prometheus exposition is
// disabled.
func New(settings *conf.Settings, dbMetrics *metrics.DatastoreMetrics) Interface {
	base := DataStore{Settings: settings, metrics: dbMetrics}
	switch settings.DatabaseDriver() {
	case conf.DriverPostgres:
		return &PostgresStore{DataStore: base}
	case conf.DriverMySQL:
		return &MySQLStore{DataStore: base}
	default:
		return &SQLiteStore{DataStore: base}
	}
}

// configureConnectionPool applies the configured pool limits to the
// underlying sql.DB. Repository operations stay single-connection-scoped,
// the pool sits transparently beneath them.
func (ds *DataStore) configureConnectionPool() error {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "configure_connection_pool").
			Build()
	}

	sqlDB.SetMaxOpenConns(ds.Settings.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(ds.Settings.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(ds.Settings.Database.ConnMaxLifetimeDuration())
	return nil
}

// closeDatabase releases the underlying connection pool.
func (ds *DataStore) closeDatabase() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "close_database").
			Build()
	}

	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close_database", errors.PriorityMedium)
	}

	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close_database", errors.PriorityMedium)
	}
	return nil
}

// dbRecorder adapts the optional metrics to the query logger's interface
// without wrapping a nil pointer in a non-nil interface value.
func (ds *DataStore) dbRecorder() dbMetricsRecorder {
	if ds.metrics == nil {
		return nil
	}
	return ds.metrics
}

// observeOp records one repository operation for metrics. Safe to call with
// nil metrics.
func (ds *DataStore) observeOp(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.IsNotFound(err) {
		status = "error"
	}
	ds.metrics.RecordNoteOperation(operation, status)
	ds.metrics.RecordNoteOperationDuration(operation, time.Since(start).Seconds())
}
