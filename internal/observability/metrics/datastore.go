// Package metrics provides datastore metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains Prometheus metrics for datastore operations
type DatastoreMetrics struct {
	registry *prometheus.Registry

	// Database operation metrics, recorded by the query logger
	dbOperationsTotal      *prometheus.CounterVec
	dbOperationDuration    *prometheus.HistogramVec
	dbOperationErrorsTotal *prometheus.CounterVec

	// Note operation metrics, recorded by the repository layer
	noteOperationsTotal   *prometheus.CounterVec
	noteOperationDuration *prometheus.HistogramVec

	// Connection pool metrics
	dbConnectionsActiveGauge prometheus.Gauge
	dbConnectionsIdleGauge   prometheus.Gauge
	dbConnectionsMaxGauge    prometheus.Gauge

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewDatastoreMetrics creates and registers new datastore metrics
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DatastoreMetrics) initMetrics() error {
	m.dbOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "table", "status"}, // operation: select, insert, update, delete; status: success, error
	)

	m.dbOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_db_operation_duration_seconds",
			Help:    "Time taken for database operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~32s
		},
		[]string{"operation", "table"},
	)

	m.dbOperationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation", "table", "error_type"}, // error_type: connection, constraint, locked, timeout, missing_relation, other
	)

	m.noteOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datastore_note_operations_total",
			Help: "Total number of note repository operations",
		},
		[]string{"operation", "status"}, // operation: create_note, update_note, notes_by_project, ...
	)

	m.noteOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datastore_note_operation_duration_seconds",
			Help:    "Time taken for note repository operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	m.dbConnectionsActiveGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datastore_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	m.dbConnectionsIdleGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datastore_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	m.dbConnectionsMaxGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datastore_db_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// Initialize collectors slice with all metrics
	m.collectors = []prometheus.Collector{
		m.dbOperationsTotal,
		m.dbOperationDuration,
		m.dbOperationErrorsTotal,
		m.noteOperationsTotal,
		m.noteOperationDuration,
		m.dbConnectionsActiveGauge,
		m.dbConnectionsIdleGauge,
		m.dbConnectionsMaxGauge,
	}

	return nil
}

// Describe implements the Collector interface
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordDbOperation records a database operation
func (m *DatastoreMetrics) RecordDbOperation(operation, table, status string) {
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDbOperationDuration records the duration of a database operation
func (m *DatastoreMetrics) RecordDbOperationDuration(operation, table string, duration float64) {
	m.dbOperationDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordDbOperationError records a database operation error
func (m *DatastoreMetrics) RecordDbOperationError(operation, table, errorType string) {
	m.dbOperationErrorsTotal.WithLabelValues(operation, table, errorType).Inc()
}

// RecordNoteOperation records a note repository operation
func (m *DatastoreMetrics) RecordNoteOperation(operation, status string) {
	m.noteOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordNoteOperationDuration records the duration of a note repository operation
func (m *DatastoreMetrics) RecordNoteOperationDuration(operation string, duration float64) {
	m.noteOperationDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateConnectionMetrics updates database connection pool metrics
func (m *DatastoreMetrics) UpdateConnectionMetrics(active, idle, maxConn int) {
	m.dbConnectionsActiveGauge.Set(float64(active))
	m.dbConnectionsIdleGauge.Set(float64(idle))
	m.dbConnectionsMaxGauge.Set(float64(maxConn))
}
