// Package observability provides Prometheus metrics for the annotation
// server. Sentry-related error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/screwnvim/screw-server/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	HTTP      *metrics.HTTPMetrics
	Datastore *metrics.DatastoreMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors on a private registry. It returns an error if any collector
// fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Datastore metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		HTTP:      httpMetrics,
		Datastore: datastoreMetrics,
	}, nil
}

// DatastoreMetrics returns the datastore collectors, or nil when metrics
// are disabled. Nil-safe so callers can pass the result straight through.
func (m *Metrics) DatastoreMetrics() *metrics.DatastoreMetrics {
	if m == nil {
		return nil
	}
	return m.Datastore
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format for this registry. The caller mounts it on its own router.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
