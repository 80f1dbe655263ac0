package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit pipeline.
type Metrics struct {
	// Records entering the pipeline, by path ("inbox", "overflow").
	Published *prometheus.CounterVec

	// Records durably appended to the store.
	Appended prometheus.Counter

	// Append attempts that failed and were re-buffered.
	AppendFailures prometheus.Counter

	// Records dropped because the overflow buffer wrapped.
	Dropped prometheus.Counter
}

// New creates a Metrics instance with all audit pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_audit_published_total",
			Help: "Comparison records entering the audit pipeline by path",
		}, []string{"path"}),
		Appended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_appended_total",
			Help: "Comparison records durably appended to the audit store",
		}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_append_failures_total",
			Help: "Failed audit store appends (record re-buffered)",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_audit_dropped_total",
			Help: "Comparison records dropped by overflow buffer wraparound",
		}),
	}
}

// IncPublished records one record entering the pipeline via the given path.
func (m *Metrics) IncPublished(path string) {
	if m != nil {
		m.Published.WithLabelValues(path).Inc()
	}
}

// IncAppended records one durable append.
func (m *Metrics) IncAppended() {
	if m != nil {
		m.Appended.Inc()
	}
}

// IncAppendFailure records one failed append.
func (m *Metrics) IncAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

// AddDropped records n dropped records.
func (m *Metrics) AddDropped(n int64) {
	if m != nil && n > 0 {
		m.Dropped.Add(float64(n))
	}
}
