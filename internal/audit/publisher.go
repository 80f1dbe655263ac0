package audit

import (
	"vigil/internal/audit/metrics"
)

// Publisher is the fire-and-forget entry to the audit pipeline. Publish
// never blocks: records go to the worker's inbox when there is room and to
// the overflow ring buffer when there is not. The store's request-id
// idempotency absorbs any duplicate that at-least-once delivery produces.
type Publisher struct {
	inbox    chan<- ComparisonRecord
	overflow *RingBuffer
	metrics  *metrics.Metrics
}

// NewPublisher wires a publisher to the worker's inbox and overflow buffer.
func NewPublisher(inbox chan<- ComparisonRecord, overflow *RingBuffer, m *metrics.Metrics) *Publisher {
	return &Publisher{inbox: inbox, overflow: overflow, metrics: m}
}

// Publish hands a record to the pipeline without blocking the response path.
func (p *Publisher) Publish(record ComparisonRecord) {
	select {
	case p.inbox <- record:
		p.metrics.IncPublished("inbox")
	default:
		p.overflow.Enqueue(record)
		p.metrics.IncPublished("overflow")
	}
}
