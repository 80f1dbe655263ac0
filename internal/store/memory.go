package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vigil/pkg/platform/sentinel"
)

// Memory stores credentials and tenants in memory for tests and local
// development. The conditional-extend semantics mirror what the relational
// store guarantees, so validators behave identically against either.
type Memory struct {
	mu          sync.RWMutex
	credentials map[string]*CredentialRecord
	tenants     map[string]*TenantRecord
	onRevoke    []func(fingerprint string)
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		credentials: make(map[string]*CredentialRecord),
		tenants:     make(map[string]*TenantRecord),
	}
}

// AddTenant seeds a tenant record.
func (s *Memory) AddTenant(t TenantRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = &t
}

// AddCredential seeds a credential record keyed by its fingerprint.
func (s *Memory) AddCredential(c CredentialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.Fingerprint] = &c
}

// OnRevoke registers a hook fired whenever a credential is revoked. The cache
// manager subscribes so revocation invalidates cached decisions immediately.
func (s *Memory) OnRevoke(fn func(fingerprint string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRevoke = append(s.onRevoke, fn)
}

func (s *Memory) LookupCredential(_ context.Context, fingerprint string) (*CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.credentials[fingerprint]
	if !ok || record.Revoked {
		return nil, fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	copied := *record
	return &copied, nil
}

func (s *Memory) LookupTenant(_ context.Context, tenantID string) (*TenantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
	}
	copied := *tenant
	return &copied, nil
}

// ExtendCredential applies a conditional expiry update. Only one of N
// concurrent extenders observes the expected expiry; the rest get
// ErrConflict and treat the extension as already done.
func (s *Memory) ExtendCredential(_ context.Context, fingerprint string, newExpiry, expectedCurrent time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.credentials[fingerprint]
	if !ok || record.Revoked {
		return fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	if !record.ExpiresAt.Equal(expectedCurrent) {
		return fmt.Errorf("expiry moved from %s: %w", expectedCurrent.Format(time.RFC3339), sentinel.ErrConflict)
	}
	record.ExpiresAt = newExpiry
	return nil
}

func (s *Memory) RevokeCredential(_ context.Context, fingerprint string) error {
	s.mu.Lock()
	record, ok := s.credentials[fingerprint]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("credential not found: %w", sentinel.ErrNotFound)
	}
	record.Revoked = true
	hooks := make([]func(string), len(s.onRevoke))
	copy(hooks, s.onRevoke)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(fingerprint)
	}
	return nil
}
