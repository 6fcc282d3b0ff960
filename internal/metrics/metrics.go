// Package metrics exposes Prometheus counters for the roster and the
// notifier. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	Notifications       *prometheus.CounterVec
	PersonsCreated      prometheus.Counter
	DuplicateRejections *prometheus.CounterVec
	ImportRows          *prometheus.CounterVec
	GuardConflicts      prometheus.Counter
}

// New creates a Metrics instance on its own registry, with Go and process
// collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aniversaris_notifications_total",
			Help: "Notification log entries by channel, category and outcome",
		}, []string{"channel", "category", "outcome"}),

		PersonsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "aniversaris_persons_created_total",
			Help: "Persons inserted through the create path",
		}),

		DuplicateRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aniversaris_duplicate_rejections_total",
			Help: "Inserts or updates rejected by duplicate screening, by match kind",
		}, []string{"kind"}),

		ImportRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aniversaris_import_rows_total",
			Help: "Bulk import rows by result",
		}, []string{"result"}), // result: "inserted", "failed", "linked"

		GuardConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "aniversaris_guard_conflicts_total",
			Help: "Mutations refused because another one was in flight for the session",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncNotification records one notification log entry.
func (m *Metrics) IncNotification(channel, category, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(channel, category, outcome).Inc()
	}
}

// IncPersonCreated records a successful create.
func (m *Metrics) IncPersonCreated() {
	if m != nil {
		m.PersonsCreated.Inc()
	}
}

// IncDuplicateRejection records a screening rejection.
func (m *Metrics) IncDuplicateRejection(kind string) {
	if m != nil {
		m.DuplicateRejections.WithLabelValues(kind).Inc()
	}
}

// AddImportRows records bulk import progress.
func (m *Metrics) AddImportRows(result string, n int) {
	if m != nil && n > 0 {
		m.ImportRows.WithLabelValues(result).Add(float64(n))
	}
}

// IncGuardConflict records a refused concurrent mutation.
func (m *Metrics) IncGuardConflict() {
	if m != nil {
		m.GuardConflicts.Inc()
	}
}
