package audit

import (
	"context"
	"time"
)

// Error Contract:
// Append is idempotent per RequestID: a duplicate append is a silent no-op,
// never an error, so at-least-once delivery from the publisher cannot
// corrupt aggregates. QueryWindow returns records with
// start <= RecordedAt < end, oldest first.

// Store persists comparison records. Append-only: nothing updates or deletes.
type Store interface {
	Append(ctx context.Context, record ComparisonRecord) error
	QueryWindow(ctx context.Context, start, end time.Time) ([]ComparisonRecord, error)
}
