package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"vigil/internal/platform/kafka"
)

// KafkaMirror copies appended comparison records to a Kafka topic for
// external reporting pipelines. Records are keyed by request id so topic
// compaction and downstream consumers deduplicate the same way the store
// does.
type KafkaMirror struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewKafkaMirror wraps a connected producer. Returns nil when the producer
// is nil (mirroring disabled) so callers can wire it unconditionally.
func NewKafkaMirror(producer *kafka.Producer, logger *slog.Logger) *KafkaMirror {
	if producer == nil {
		return nil
	}
	return &KafkaMirror{producer: producer, logger: logger}
}

func (m *KafkaMirror) Publish(ctx context.Context, record ComparisonRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		m.logger.ErrorContext(ctx, "marshal comparison record for mirror",
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}
	m.producer.Publish(ctx, []byte(record.RequestID), payload)
}
