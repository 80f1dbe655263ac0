// Package metrics exposes Prometheus counters for the error translation
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	translated *prometheus.CounterVec
}

// New registers the translation metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		translated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_translated_errors_total",
			Help: "Internal error kinds translated into user-facing categories.",
		}, []string{"kind", "origin", "category"}),
	}
}

// IncTranslated is nil-safe so tests can pass a nil Metrics.
func (m *Metrics) IncTranslated(kind, origin, category string) {
	if m == nil {
		return
	}
	m.translated.WithLabelValues(kind, origin, category).Inc()
}
