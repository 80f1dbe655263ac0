package audit

import "sync"

// RingBuffer is a bounded, thread-safe overflow buffer for comparison
// records. When full, the oldest records are dropped to make room: losing an
// old shadow-comparison datapoint is acceptable, blocking the response path
// for one is not.
type RingBuffer struct {
	mu       sync.Mutex
	records  []ComparisonRecord
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		records:  make([]ComparisonRecord, capacity),
		capacity: capacity,
	}
}

// Enqueue adds a record, dropping the oldest if necessary.
func (b *RingBuffer) Enqueue(record ComparisonRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.records[b.head] = record
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n records from the buffer.
func (b *RingBuffer) DequeueBatch(n int) []ComparisonRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	out := make([]ComparisonRecord, n)
	for i := 0; i < n; i++ {
		out[i] = b.records[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// Len returns the current number of buffered records.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped records.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
