package validation

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vigil/internal/credential"
	"vigil/internal/platform/config"
	"vigil/internal/store"
	"vigil/pkg/requestcontext"
)

const (
	testTenantA = "tenant-a"
	testTenantB = "tenant-b"
)

type fixture struct {
	t        *testing.T
	store    *store.Memory
	resolver *Resolver
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	mem.AddTenant(store.TenantRecord{ID: testTenantA, Name: "Tenant A", Active: true, ExtendAllowed: true})
	mem.AddTenant(store.TenantRecord{ID: testTenantB, Name: "Tenant B", Active: true, ExtendAllowed: true})
	return &fixture{
		t:        t,
		store:    mem,
		resolver: NewResolver(mem, []byte("test-signing-key")),
		now:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

// ctx pins the request time so lifetime math in tests is deterministic.
func (f *fixture) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), f.now)
}

// seedAPIKey stores a hashed credential record and returns the raw bearer
// value a caller would present.
func (f *fixture) seedAPIKey(raw string, mutate ...func(*store.CredentialRecord)) string {
	f.t.Helper()
	cred, err := credential.Parse(raw)
	require.NoError(f.t, err)
	hash, err := store.HashSecret(raw)
	require.NoError(f.t, err)

	record := store.CredentialRecord{
		Fingerprint:   cred.Fingerprint(),
		SecretHash:    hash,
		Kind:          string(credential.KindAPIKey),
		TenantID:      testTenantA,
		Access:        "WRITE",
		IssuedAt:      f.now.Add(-10 * time.Minute),
		ExpiresAt:     f.now.Add(50 * time.Minute),
		ExtendAllowed: true,
	}
	for _, m := range mutate {
		m(&record)
	}
	f.store.AddCredential(record)
	return raw
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicyTable(t *testing.T) *PolicyTable {
	t.Helper()
	table, err := NewPolicyTable(map[string]config.ResourcePolicy{
		"reports/":  {Sensitivity: 0.2, MinAccess: "READ"},
		"billing/":  {Sensitivity: 0.6, MinAccess: "WRITE"},
		"tenants/":  {Sensitivity: 0.9, MinAccess: "ADMIN"},
		"archives/": {Sensitivity: 1.0, MinAccess: "READ"},
	})
	require.NoError(t, err)
	return table
}

// fakeCache is a map-backed Cache for validator tests. TTL bookkeeping is
// recorded but not enforced; expiry behavior is the cache package's concern.
type fakeCache struct {
	entries     map[string]CachedDecision
	lastTTL     time.Duration
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]CachedDecision)}
}

func (c *fakeCache) key(fingerprint, resource string) string {
	return fingerprint + "|" + resource
}

func (c *fakeCache) Get(_ context.Context, fingerprint, resource string) (*CachedDecision, bool) {
	entry, ok := c.entries[c.key(fingerprint, resource)]
	if !ok {
		return nil, false
	}
	return &entry, true
}

func (c *fakeCache) Put(_ context.Context, fingerprint, resource string, decision CachedDecision, ttl time.Duration) {
	c.entries[c.key(fingerprint, resource)] = decision
	c.lastTTL = ttl
}

func (c *fakeCache) Invalidate(_ context.Context, fingerprint string) {
	c.invalidated = append(c.invalidated, fingerprint)
	for key := range c.entries {
		if len(key) >= len(fingerprint) && key[:len(fingerprint)] == fingerprint {
			delete(c.entries, key)
		}
	}
}
