package validation

import (
	"context"
	"fmt"

	"vigil/internal/credential"
	"vigil/internal/store"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// Resolution is the full result of resolving one credential: the identity
// context plus the store facts validators need for expiry and extension
// decisions.
type Resolution struct {
	Context Context
	Record  *store.CredentialRecord
	Tenant  *store.TenantRecord
}

// Resolver turns a bearer credential into a validation context via store
// lookups. It is a pure read over the store: no shared mutable state, safe
// for both validators to call concurrently for the same request.
type Resolver struct {
	store      store.Reader
	signingKey []byte
}

// NewResolver constructs a resolver over the store's read interface. The
// signing key verifies session-token signatures before any store I/O.
func NewResolver(reader store.Reader, signingKey []byte) *Resolver {
	return &Resolver{store: reader, signingKey: signingKey}
}

// Resolve looks up the credential's owning tenant and user and computes the
// initial risk score. Failures use the sentinel taxonomy: ErrMalformed before
// any store access, ErrNotFound and ErrExpired from the store facts.
func (r *Resolver) Resolve(ctx context.Context, cred credential.Credential) (*Resolution, error) {
	var claims *credential.SessionClaims
	if cred.Kind() == credential.KindSessionToken {
		var err error
		claims, err = credential.VerifySessionSignature(cred, r.signingKey)
		if err != nil {
			return nil, err
		}
	}

	record, err := r.store.LookupCredential(ctx, cred.Fingerprint())
	if err != nil {
		return nil, err
	}

	// The fingerprint located the record; the hash proves the caller holds
	// the credential that produced it.
	if record.SecretHash != "" && !store.VerifySecret(cred.Raw(), record.SecretHash) {
		return nil, fmt.Errorf("secret mismatch for fingerprint %s: %w", shortFingerprint(cred.Fingerprint()), sentinel.ErrNotFound)
	}
	if claims != nil && claims.Subject != "" && claims.Subject != record.UserID {
		return nil, fmt.Errorf("session subject mismatch: %w", sentinel.ErrNotFound)
	}

	now := requestcontext.Now(ctx)
	if !record.ExpiresAt.After(now) {
		return nil, fmt.Errorf("credential expired at %s: %w", record.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"), sentinel.ErrExpired)
	}

	tenant, err := r.store.LookupTenant(ctx, record.TenantID)
	if err != nil {
		return nil, err
	}

	access, err := ParseAccessLevel(record.Access)
	if err != nil {
		return nil, fmt.Errorf("stored access level: %w", err)
	}

	return &Resolution{
		Context: Context{
			TenantID:   record.TenantID,
			UserID:     record.UserID,
			Access:     access,
			RiskScore:  initialRisk(record, now),
			Kind:       cred.Kind(),
			ResolvedAt: now,
		},
		Record: record,
		Tenant: tenant,
	}, nil
}

// shortFingerprint truncates a fingerprint for log and error messages.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
