package audit

import (
	"context"
	"log/slog"
	"time"

	"vigil/internal/audit/metrics"
)

// Mirror is an optional secondary sink (Kafka) records are copied to after a
// durable append. Best-effort: mirror failures never re-queue a record.
type Mirror interface {
	Publish(ctx context.Context, record ComparisonRecord)
}

// Worker drains the inbox and overflow buffer into the audit store in the
// background, keeping the response path free of store latency. Failed
// appends go back to the overflow buffer, so delivery is at-least-once; the
// store's idempotency makes redelivery harmless.
type Worker struct {
	store    Store
	inbox    <-chan ComparisonRecord
	overflow *RingBuffer
	breaker  *CircuitBreaker
	mirror   Mirror
	logger   *slog.Logger
	metrics  *metrics.Metrics

	drainInterval time.Duration
	lastDropped   int64
}

// NewWorker wires the audit pipeline's background consumer. mirror may be
// nil.
func NewWorker(
	store Store,
	inbox <-chan ComparisonRecord,
	overflow *RingBuffer,
	breaker *CircuitBreaker,
	mirror Mirror,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Worker {
	return &Worker{
		store:         store,
		inbox:         inbox,
		overflow:      overflow,
		breaker:       breaker,
		mirror:        mirror,
		logger:        logger,
		metrics:       m,
		drainInterval: time.Second,
	}
}

// Run consumes until ctx is cancelled, then makes a final drain pass so a
// graceful shutdown loses nothing that can still be written.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.finalDrain()
			return
		case record := <-w.inbox:
			w.persist(ctx, record)
		case <-ticker.C:
			w.drainOverflow(ctx, 256)
			w.reportDrops()
		}
	}
}

func (w *Worker) persist(ctx context.Context, record ComparisonRecord) {
	if !w.breaker.Allow() {
		w.overflow.Enqueue(record)
		return
	}
	if err := w.store.Append(ctx, record); err != nil {
		w.breaker.RecordFailure()
		w.metrics.IncAppendFailure()
		w.overflow.Enqueue(record)
		w.logger.WarnContext(ctx, "audit append failed, record re-buffered",
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	w.breaker.RecordSuccess()
	w.metrics.IncAppended()
	if w.mirror != nil {
		w.mirror.Publish(ctx, record)
	}
}

func (w *Worker) drainOverflow(ctx context.Context, max int) {
	if !w.breaker.Allow() {
		return
	}
	for _, record := range w.overflow.DequeueBatch(max) {
		w.persist(ctx, record)
	}
}

// finalDrain runs with a fresh short-lived context because the run context
// is already cancelled.
func (w *Worker) finalDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case record := <-w.inbox:
			w.persist(ctx, record)
		default:
			w.drainOverflow(ctx, w.overflow.Len())
			w.reportDrops()
			return
		}
	}
}

func (w *Worker) reportDrops() {
	dropped := w.overflow.Dropped()
	w.metrics.AddDropped(dropped - w.lastDropped)
	w.lastDropped = dropped
}
