// Package store defines the gateway's view of the multi-tenant credential
// store. The gateway only ever reads identities and performs one conditional
// write (credential extension); everything else about the store is someone
// else's problem.
package store

import (
	"context"
	"time"
)

// CredentialRecord is the stored shape of one issued credential. Records are
// keyed by fingerprint; the raw bearer value is never persisted.
type CredentialRecord struct {
	Fingerprint   string
	SecretHash    string // bcrypt of the raw bearer value
	Kind          string // "api_key" or "session_token"
	TenantID      string
	UserID        string // empty for machine credentials
	Access        string // READ, WRITE, ADMIN
	IssuedAt      time.Time
	ExpiresAt     time.Time
	FailureCount  int // prior auth failures, feeds initial risk
	ExtendAllowed bool
	Revoked       bool
}

// Lifetime returns the total validity window of the credential.
func (r *CredentialRecord) Lifetime() time.Duration {
	return r.ExpiresAt.Sub(r.IssuedAt)
}

// Remaining returns the validity left at the given instant. Negative values
// mean the credential is already expired.
func (r *CredentialRecord) Remaining(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}

// TenantRecord is the stored shape of one tenant.
type TenantRecord struct {
	ID            string
	Name          string
	Active        bool
	ExtendAllowed bool
}

// Error Contract:
// All store methods follow this pattern:
// - Return sentinel.ErrNotFound when the requested entity does not exist
//   (revoked credentials count as not found - revocation ends the lifecycle)
// - Return sentinel.ErrConflict when a conditional write loses the race
// - Return wrapped errors with context for infrastructure failures

// Reader is the read interface both validators resolve against. It must be
// safe for concurrent use; resolution is a pure read.
type Reader interface {
	LookupCredential(ctx context.Context, fingerprint string) (*CredentialRecord, error)
	LookupTenant(ctx context.Context, tenantID string) (*TenantRecord, error)
}

// Writer is the write interface the enhanced validator uses for credential
// extension. ExtendCredential is a conditional write: it succeeds only when
// the stored expiry still equals expectedCurrent, which is what makes
// extension idempotent across gateway instances without in-process locking.
type Writer interface {
	ExtendCredential(ctx context.Context, fingerprint string, newExpiry, expectedCurrent time.Time) error
	RevokeCredential(ctx context.Context, fingerprint string) error
}

// Store combines both interfaces for implementations that provide them
// together.
type Store interface {
	Reader
	Writer
}
