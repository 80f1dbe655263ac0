package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/pkg/platform/sentinel"
)

func seedMemory(t *testing.T) (*Memory, CredentialRecord) {
	t.Helper()
	s := NewMemory()
	s.AddTenant(TenantRecord{ID: "tenant-a", Name: "Tenant A", Active: true, ExtendAllowed: true})
	record := CredentialRecord{
		Fingerprint:   "fp-1",
		TenantID:      "tenant-a",
		Access:        "READ",
		IssuedAt:      time.Now().Add(-time.Hour),
		ExpiresAt:     time.Now().Add(time.Hour),
		ExtendAllowed: true,
	}
	s.AddCredential(record)
	return s, record
}

func TestMemoryLookup(t *testing.T) {
	s, seeded := seedMemory(t)
	ctx := context.Background()

	record, err := s.LookupCredential(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, seeded.TenantID, record.TenantID)

	_, err = s.LookupCredential(ctx, "fp-missing")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	tenant, err := s.LookupTenant(ctx, "tenant-a")
	require.NoError(t, err)
	assert.True(t, tenant.Active)

	_, err = s.LookupTenant(ctx, "tenant-missing")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestMemoryReturnsCopies(t *testing.T) {
	s, _ := seedMemory(t)
	ctx := context.Background()

	first, err := s.LookupCredential(ctx, "fp-1")
	require.NoError(t, err)
	first.Access = "ADMIN"

	second, err := s.LookupCredential(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "READ", second.Access)
}

func TestMemoryExtendConditional(t *testing.T) {
	s, seeded := seedMemory(t)
	ctx := context.Background()
	newExpiry := seeded.ExpiresAt.Add(time.Hour)

	require.NoError(t, s.ExtendCredential(ctx, "fp-1", newExpiry, seeded.ExpiresAt))

	// Second writer still holds the old expectation and must lose.
	err := s.ExtendCredential(ctx, "fp-1", seeded.ExpiresAt.Add(2*time.Hour), seeded.ExpiresAt)
	assert.True(t, errors.Is(err, sentinel.ErrConflict))

	record, err := s.LookupCredential(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, record.ExpiresAt.Equal(newExpiry))
}

func TestMemoryExtendConcurrentSingleWinner(t *testing.T) {
	s, seeded := seedMemory(t)
	ctx := context.Background()
	newExpiry := seeded.ExpiresAt.Add(time.Hour)

	const writers = 16
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ExtendCredential(ctx, "fp-1", newExpiry, seeded.ExpiresAt)
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sentinel.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestMemoryRevoke(t *testing.T) {
	s, _ := seedMemory(t)
	ctx := context.Background()

	var revoked []string
	s.OnRevoke(func(fingerprint string) {
		revoked = append(revoked, fingerprint)
	})

	require.NoError(t, s.RevokeCredential(ctx, "fp-1"))
	assert.Equal(t, []string{"fp-1"}, revoked)

	// Revocation ends the lifecycle: the record reads as not found.
	_, err := s.LookupCredential(ctx, "fp-1")
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	err = s.ExtendCredential(ctx, "fp-1", time.Now().Add(time.Hour), time.Now())
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))
}

func TestSecretRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	hash, err := HashSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)

	assert.True(t, VerifySecret(secret, hash))
	assert.False(t, VerifySecret("wrong", hash))
}
