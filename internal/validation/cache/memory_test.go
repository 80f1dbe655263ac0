package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/validation"
)

func testDecision(tenant string) validation.CachedDecision {
	return validation.CachedDecision{
		Context: validation.Context{
			TenantID:  tenant,
			Access:    validation.AccessWrite,
			RiskScore: 0.4,
		},
		IssuedAt:      time.Now().Add(-time.Minute),
		ExpiresAt:     time.Now().Add(time.Hour),
		ExtendAllowed: true,
	}
}

func TestMemoryPutGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, ok := c.Get(ctx, "fp-1", "reports/weekly")
	assert.False(t, ok)

	c.Put(ctx, "fp-1", "reports/weekly", testDecision("tenant-a"), time.Minute)

	entry, ok := c.Get(ctx, "fp-1", "reports/weekly")
	require.True(t, ok)
	assert.Equal(t, "tenant-a", entry.Context.TenantID)

	// Scoped per resource.
	_, ok = c.Get(ctx, "fp-1", "billing/invoices")
	assert.False(t, ok)

	hits, misses, _ := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestMemoryReturnsCopy(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Put(ctx, "fp-1", "r", testDecision("tenant-a"), time.Minute)

	first, ok := c.Get(ctx, "fp-1", "r")
	require.True(t, ok)
	first.Context.TenantID = "mutated"

	second, ok := c.Get(ctx, "fp-1", "r")
	require.True(t, ok)
	assert.Equal(t, "tenant-a", second.Context.TenantID)
}

func TestMemoryExpiry(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Put(ctx, "fp-1", "r", testDecision("tenant-a"), 10*time.Millisecond)

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "fp-1", "r")
	assert.False(t, ok)

	_, _, evictions := c.Stats()
	assert.Equal(t, uint64(1), evictions)
}

func TestMemoryNonPositiveTTLNotStored(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	c.Put(ctx, "fp-1", "r", testDecision("tenant-a"), 0)
	c.Put(ctx, "fp-1", "r", testDecision("tenant-a"), -time.Second)

	_, ok := c.Get(ctx, "fp-1", "r")
	assert.False(t, ok)
}

func TestMemoryInvalidate(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	c.Put(ctx, "fp-1", "reports/weekly", testDecision("tenant-a"), time.Minute)
	c.Put(ctx, "fp-1", "billing/invoices", testDecision("tenant-a"), time.Minute)
	c.Put(ctx, "fp-2", "reports/weekly", testDecision("tenant-b"), time.Minute)

	c.Invalidate(ctx, "fp-1")

	_, ok := c.Get(ctx, "fp-1", "reports/weekly")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "fp-1", "billing/invoices")
	assert.False(t, ok)

	// Other credentials are untouched.
	_, ok = c.Get(ctx, "fp-2", "reports/weekly")
	assert.True(t, ok)

	_, _, evictions := c.Stats()
	assert.Equal(t, uint64(2), evictions)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			c.Put(ctx, "fp-1", "r", testDecision("tenant-a"), time.Minute)
		}
	}()
	for i := 0; i < 500; i++ {
		c.Get(ctx, "fp-1", "r")
	}
	<-done
}
