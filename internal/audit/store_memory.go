package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps comparison records in memory for tests and local
// development. The request-id index makes Append idempotent the same way the
// relational store's conflict clause does.
type MemoryStore struct {
	mu      sync.RWMutex
	records []ComparisonRecord
	byID    map[string]struct{}
}

// NewMemoryStore constructs an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]struct{})}
}

func (s *MemoryStore) Append(_ context.Context, record ComparisonRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.byID[record.RequestID]; seen {
		return nil
	}
	s.byID[record.RequestID] = struct{}{}
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) QueryWindow(_ context.Context, start, end time.Time) ([]ComparisonRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ComparisonRecord
	for _, record := range s.records {
		if record.RecordedAt.Before(start) || !record.RecordedAt.Before(end) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// Len reports how many distinct records have been appended.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
