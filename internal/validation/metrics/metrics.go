// Package metrics exposes Prometheus instruments for the validation
// gateway's hot path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	outcomes          *prometheus.CounterVec
	durations         *prometheus.HistogramVec
	agreement         *prometheus.CounterVec
	crossTenantBlocks prometheus.Counter
	extensions        *prometheus.CounterVec
}

// New registers the validation metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_validation_outcomes_total",
			Help: "Validator outcomes by validator, result, and error kind.",
		}, []string{"validator", "result", "error_kind"}),
		durations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_validation_duration_seconds",
			Help:    "Per-validator wall time of one validation run.",
			Buckets: prometheus.DefBuckets,
		}, []string{"validator"}),
		agreement: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_validation_agreement_total",
			Help: "Requests where the two validators agreed or diverged.",
		}, []string{"agree"}),
		crossTenantBlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_cross_tenant_blocks_total",
			Help: "Cross-tenant access attempts blocked by the enhanced validator.",
		}),
		extensions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_token_extensions_total",
			Help: "Automatic token extension attempts by result.",
		}, []string{"result"}),
	}
}

// All methods are nil-safe so tests can pass a nil Metrics.

func (m *Metrics) ObserveOutcome(validator string, success bool, errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.outcomes.WithLabelValues(validator, result, errorKind).Inc()
	m.durations.WithLabelValues(validator).Observe(d.Seconds())
}

func (m *Metrics) ObserveAgreement(agree bool) {
	if m == nil {
		return
	}
	label := "true"
	if !agree {
		label = "false"
	}
	m.agreement.WithLabelValues(label).Inc()
}

func (m *Metrics) IncCrossTenantBlock() {
	if m == nil {
		return
	}
	m.crossTenantBlocks.Inc()
}

func (m *Metrics) IncExtension(result string) {
	if m == nil {
		return
	}
	m.extensions.WithLabelValues(result).Inc()
}
