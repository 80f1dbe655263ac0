// Package cache implements the validation decision cache: memoized enhanced
// resolutions keyed by (credential fingerprint, resource). Implementations
// synchronize internally; validators call them without locking.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"vigil/internal/validation"
)

type memoryEntry struct {
	decision  validation.CachedDecision
	expiresAt time.Time
}

// Memory is the in-process cache. TTL enforcement is check-on-read: an
// expired entry observed at lookup time counts as a miss and is removed, so
// no background sweeper is needed.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]map[string]memoryEntry // fingerprint -> resource -> entry

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewMemory constructs an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]map[string]memoryEntry)}
}

func (c *Memory) Get(_ context.Context, fingerprint, resource string) (*validation.CachedDecision, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint][resource]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !entry.expiresAt.After(time.Now()) {
		c.removeExpired(fingerprint, resource, entry.expiresAt)
		c.misses.Add(1)
		c.evictions.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	decision := entry.decision
	return &decision, true
}

// removeExpired deletes the entry only if it still carries the expiry we saw,
// so a concurrent Put is never clobbered.
func (c *Memory) removeExpired(fingerprint, resource string, seenExpiry time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[fingerprint][resource]; ok && current.expiresAt.Equal(seenExpiry) {
		delete(c.entries[fingerprint], resource)
		if len(c.entries[fingerprint]) == 0 {
			delete(c.entries, fingerprint)
		}
	}
}

// Put stores a decision. At most one entry exists per (fingerprint,
// resource); the last write wins.
func (c *Memory) Put(_ context.Context, fingerprint, resource string, decision validation.CachedDecision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[fingerprint] == nil {
		c.entries[fingerprint] = make(map[string]memoryEntry)
	}
	c.entries[fingerprint][resource] = memoryEntry{
		decision:  decision,
		expiresAt: time.Now().Add(ttl),
	}
}

// Invalidate removes every cached decision for a credential. Called on
// revocation so a revoked credential never answers from cache.
func (c *Memory) Invalidate(_ context.Context, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resources, ok := c.entries[fingerprint]; ok {
		c.evictions.Add(uint64(len(resources)))
		delete(c.entries, fingerprint)
	}
}

// Stats returns the running hit/miss/eviction counters.
func (c *Memory) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
