// Package credential defines the opaque bearer credential presented by
// callers and the stable fingerprint derived from it. The raw value never
// leaves this package except through Raw(), which only the resolver's
// secret verification touches; caches, logs, and audit records carry the
// fingerprint.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"vigil/pkg/platform/sentinel"
)

// Kind distinguishes the two recognized credential shapes.
type Kind string

const (
	KindAPIKey       Kind = "api_key"
	KindSessionToken Kind = "session_token"
)

// APIKeyPrefix marks machine-issued API keys.
const APIKeyPrefix = "vak_"

// Credential is an immutable parsed bearer value.
type Credential struct {
	raw  string
	kind Kind
}

// Parse classifies a raw bearer value by shape. It never touches the store:
// an empty value or an unrecognized shape fails with ErrMalformed before any
// I/O happens.
func Parse(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, fmt.Errorf("empty credential: %w", sentinel.ErrMalformed)
	}
	switch {
	case strings.HasPrefix(raw, APIKeyPrefix):
		if len(raw) <= len(APIKeyPrefix) {
			return Credential{}, fmt.Errorf("api key has no body: %w", sentinel.ErrMalformed)
		}
		return Credential{raw: raw, kind: KindAPIKey}, nil
	case strings.Count(raw, ".") == 2:
		return Credential{raw: raw, kind: KindSessionToken}, nil
	default:
		return Credential{}, fmt.Errorf("unrecognized credential shape: %w", sentinel.ErrMalformed)
	}
}

// Raw returns the original bearer value.
func (c Credential) Raw() string { return c.raw }

// Kind returns the classified credential kind.
func (c Credential) Kind() Kind { return c.kind }

// Fingerprint returns the stable, non-reversible digest used as the cache
// and audit key for this credential.
func (c Credential) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.raw))
	return hex.EncodeToString(sum[:])
}

// SessionClaims is the subset of JWT claims the gateway reads from session
// tokens. The store remains authoritative for expiry and identity; claims
// only cross-check the resolved record.
type SessionClaims struct {
	Subject string
	TokenID string
}

// VerifySessionSignature checks the HMAC signature of a session token.
// Claim validation (exp, nbf) is deliberately skipped here: the store's
// temporal versioning is the source of truth for expiry, and double-checking
// the embedded exp would let a stale token disagree with an extended record.
func VerifySessionSignature(c Credential, signingKey []byte) (*SessionClaims, error) {
	if c.kind != KindSessionToken {
		return nil, fmt.Errorf("not a session token: %w", sentinel.ErrMalformed)
	}
	token, err := jwt.ParseWithClaims(c.raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token signature: %w", sentinel.ErrMalformed)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("invalid session token claims: %w", sentinel.ErrMalformed)
	}
	return &SessionClaims{Subject: claims.Subject, TokenID: claims.ID}, nil
}
