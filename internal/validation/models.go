// Package validation implements the parallel zero-trust validation gateway:
// the legacy and enhanced validators, the credential resolver they share, and
// the orchestrator that runs both per request and enforces fail-safe
// selection.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vigil/internal/credential"
	"vigil/pkg/platform/sentinel"
)

// AccessLevel is the granted privilege tier, ordered READ < WRITE < ADMIN.
type AccessLevel string

const (
	AccessRead  AccessLevel = "READ"
	AccessWrite AccessLevel = "WRITE"
	AccessAdmin AccessLevel = "ADMIN"
)

var accessRanks = map[AccessLevel]int{
	AccessRead:  0,
	AccessWrite: 1,
	AccessAdmin: 2,
}

// ParseAccessLevel converts a stored access string into an AccessLevel.
func ParseAccessLevel(raw string) (AccessLevel, error) {
	level := AccessLevel(raw)
	if _, ok := accessRanks[level]; !ok {
		return "", fmt.Errorf("unknown access level %q", raw)
	}
	return level, nil
}

// Covers reports whether the level grants at least the required tier.
func (a AccessLevel) Covers(required AccessLevel) bool {
	return accessRanks[a] >= accessRanks[required]
}

// Degrade steps the level down one tier. READ is the floor.
func (a AccessLevel) Degrade() AccessLevel {
	switch a {
	case AccessAdmin:
		return AccessWrite
	case AccessWrite:
		return AccessRead
	default:
		return AccessRead
	}
}

// Origin names which validator produced an outcome.
type Origin string

const (
	OriginLegacy   Origin = "legacy"
	OriginEnhanced Origin = "enhanced"
)

// ErrorKind is the internal failure taxonomy shared by both validators.
type ErrorKind string

const (
	// Authentication failures - retriable with a new credential.
	KindNotFound  ErrorKind = "not_found"
	KindExpired   ErrorKind = "expired"
	KindMalformed ErrorKind = "malformed"

	// Authorization failures - not retriable without a privilege change.
	KindCrossTenantDenied  ErrorKind = "cross_tenant_denied"
	KindAccessInsufficient ErrorKind = "access_insufficient"

	// Internal faults - retriable, alert operators.
	KindInternalFault ErrorKind = "internal_fault"
)

// AllErrorKinds lists every kind either validator can produce. The error
// translation service checks its mapping against this list at construction
// time so no kind can reach a caller untranslated.
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{
		KindNotFound,
		KindExpired,
		KindMalformed,
		KindCrossTenantDenied,
		KindAccessInsufficient,
		KindInternalFault,
	}
}

// kindFromError maps sentinel and context errors onto the failure taxonomy.
// Anything unrecognized is an internal fault: failures are never silently
// reshaped into authentication errors.
func kindFromError(err error) ErrorKind {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return KindNotFound
	case errors.Is(err, sentinel.ErrExpired):
		return KindExpired
	case errors.Is(err, sentinel.ErrMalformed):
		return KindMalformed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindInternalFault
	default:
		return KindInternalFault
	}
}

// CacheStatus records whether the enhanced validator answered from cache.
type CacheStatus string

const (
	CacheHit           CacheStatus = "hit"
	CacheMiss          CacheStatus = "miss"
	CacheNotApplicable CacheStatus = "not_applicable"
)

// Context is the resolved identity for a single request. It is built fresh
// per request by each validator and never shared across requests.
type Context struct {
	TenantID   string
	UserID     string // empty for machine credentials
	Access     AccessLevel
	RiskScore  float64
	Kind       credential.Kind
	ResolvedAt time.Time
}

// Outcome is the result of one validator run.
type Outcome struct {
	Validator          Origin
	Success            bool
	Context            *Context
	ErrorKind          ErrorKind
	Duration           time.Duration
	CacheStatus        CacheStatus
	ExtensionAttempted bool
	ExtensionApplied   bool
	ExtensionFailed    bool
	CrossTenantBlock   bool
}

// Category is the small, stable user-facing error vocabulary.
type Category string

const (
	CategoryInvalidCredentials Category = "invalid_credentials"
	CategoryAccessDenied       Category = "access_denied"
	CategoryUnavailable        Category = "temporarily_unavailable"
)

// UserFacingError is what callers see when validation fails. Internal error
// kinds never cross the boundary untranslated.
type UserFacingError struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Translator converts internal error kinds into user-facing errors. The
// implementation guarantees totality over AllErrorKinds at construction.
type Translator interface {
	Translate(kind ErrorKind, origin Origin) UserFacingError
}

// Decision is the caller-visible result of one orchestrated validation.
type Decision struct {
	RequestID string
	Allowed   bool
	Context   *Context
	Error     *UserFacingError
}

// CachedDecision is the cache manager's view of a successful enhanced
// validation: the resolved context plus the credential lifecycle facts the
// extension step needs on a cache hit.
type CachedDecision struct {
	Context       Context
	IssuedAt      time.Time
	ExpiresAt     time.Time
	ExtendAllowed bool
}

// Cache memoizes enhanced validation decisions keyed by (credential
// fingerprint, resource). Implementations handle their own synchronization;
// validators call them without external locking.
type Cache interface {
	Get(ctx context.Context, fingerprint, resource string) (*CachedDecision, bool)
	Put(ctx context.Context, fingerprint, resource string, decision CachedDecision, ttl time.Duration)
	Invalidate(ctx context.Context, fingerprint string)
}
