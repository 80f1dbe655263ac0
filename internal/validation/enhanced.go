package validation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vigil/internal/credential"
	"vigil/internal/store"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

// EnhancedPolicy carries the tunable inputs of the enhanced path. Nothing in
// the validator hard-codes a threshold or TTL.
type EnhancedPolicy struct {
	// ExtensionThreshold is the consumed-lifetime fraction past which an
	// extension is attempted.
	ExtensionThreshold float64
	// ExtensionWindow is how far past the current expiry an extension
	// reaches.
	ExtensionWindow time.Duration
	// RiskCeiling is the refined score above which access is degraded
	// instead of the request failing.
	RiskCeiling float64
	// CacheTTL caps how long a resolution stays cached; the effective TTL is
	// min(CacheTTL, remaining credential lifetime).
	CacheTTL time.Duration
}

// EnhancedValidator is the new validation path: cache-assisted resolution,
// cross-tenant isolation, automatic token extension, refined risk scoring,
// and resource-level authorization. During shadow mode its outcome is only
// recorded, never surfaced.
type EnhancedValidator struct {
	resolver *Resolver
	cache    Cache
	writer   store.Writer
	policies *PolicyTable
	policy   EnhancedPolicy
	logger   *slog.Logger
}

// NewEnhancedValidator wires the enhanced path.
func NewEnhancedValidator(
	resolver *Resolver,
	cache Cache,
	writer store.Writer,
	policies *PolicyTable,
	policy EnhancedPolicy,
	logger *slog.Logger,
) *EnhancedValidator {
	return &EnhancedValidator{
		resolver: resolver,
		cache:    cache,
		writer:   writer,
		policies: policies,
		policy:   policy,
		logger:   logger,
	}
}

// Validate runs the enhanced checks for a raw bearer value against the
// requested tenant and resource.
func (v *EnhancedValidator) Validate(ctx context.Context, rawCredential, requestedTenant, requestedResource string) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Validator: OriginEnhanced, CacheStatus: CacheMiss}
	defer func() { outcome.Duration = time.Since(start) }()

	cred, err := credential.Parse(rawCredential)
	if err != nil {
		outcome.ErrorKind = kindFromError(err)
		outcome.CacheStatus = CacheNotApplicable
		return outcome
	}

	fingerprint := cred.Fingerprint()
	now := requestcontext.Now(ctx)

	// Step 1: cache probe. A hit skips resolution entirely; every check
	// below still runs against the cached identity.
	var (
		vc            Context
		issuedAt      time.Time
		expiresAt     time.Time
		extendAllowed bool
	)
	if entry, ok := v.cache.Get(ctx, fingerprint, requestedResource); ok {
		outcome.CacheStatus = CacheHit
		vc = entry.Context
		issuedAt = entry.IssuedAt
		expiresAt = entry.ExpiresAt
		extendAllowed = entry.ExtendAllowed
	} else {
		// Step 2: resolution.
		resolution, err := v.resolver.Resolve(ctx, cred)
		if err != nil {
			outcome.ErrorKind = kindFromError(err)
			return outcome
		}
		if !resolution.Tenant.Active {
			outcome.ErrorKind = KindNotFound
			return outcome
		}
		vc = resolution.Context
		issuedAt = resolution.Record.IssuedAt
		expiresAt = resolution.Record.ExpiresAt
		extendAllowed = resolution.Record.ExtendAllowed && resolution.Tenant.ExtendAllowed
	}

	// Step 3: cross-tenant isolation. Exact tenant equality, ADMIN exempt.
	// This is fail-closed: no risk score or policy can override it.
	if vc.TenantID != requestedTenant && vc.Access != AccessAdmin {
		outcome.ErrorKind = KindCrossTenantDenied
		outcome.CrossTenantBlock = true
		v.logger.WarnContext(ctx, "cross-tenant access blocked",
			"request_id", requestcontext.RequestID(ctx),
			"fingerprint", shortFingerprint(fingerprint),
			"credential_tenant", vc.TenantID,
			"requested_tenant", requestedTenant,
			"resource", requestedResource,
			"client_ip", requestcontext.ClientIP(ctx),
			"user_agent", requestcontext.UserAgent(ctx),
		)
		return outcome
	}

	// Resource-level authorization against the granted (pre-degrade) level.
	policy := v.policies.For(requestedResource)
	if !vc.Access.Covers(policy.MinAccess) {
		outcome.ErrorKind = KindAccessInsufficient
		return outcome
	}

	// Step 4: token lifecycle. The conditional write makes this idempotent
	// across instances; losing the race means someone else already extended.
	if v.shouldExtend(issuedAt, expiresAt, now, extendAllowed) {
		outcome.ExtensionAttempted = true
		newExpiry := expiresAt.Add(v.policy.ExtensionWindow)
		switch err := v.writer.ExtendCredential(ctx, fingerprint, newExpiry, expiresAt); {
		case err == nil:
			outcome.ExtensionApplied = true
			expiresAt = newExpiry
		case errors.Is(err, sentinel.ErrConflict):
			// Another instance extended inside the same window.
		default:
			outcome.ExtensionFailed = true
			v.logger.ErrorContext(ctx, "credential extension failed",
				"request_id", requestcontext.RequestID(ctx),
				"fingerprint", shortFingerprint(fingerprint),
				"error", err,
			)
		}
	}

	// Keep the pre-refinement identity for the cache so a later hit re-runs
	// steps 3-5 without compounding the risk adjustment.
	resolved := vc

	// Step 5: risk refinement. Fail-soft: a score above the ceiling degrades
	// the granted level rather than failing the request.
	vc.RiskScore = refineRisk(vc.RiskScore, policy.Sensitivity, policy.MinAccess)
	if vc.RiskScore > v.policy.RiskCeiling {
		degraded := vc.Access.Degrade()
		v.logger.InfoContext(ctx, "access degraded by risk score",
			"request_id", requestcontext.RequestID(ctx),
			"risk_score", vc.RiskScore,
			"ceiling", v.policy.RiskCeiling,
			"from", string(vc.Access),
			"to", string(degraded),
		)
		vc.Access = degraded
	}

	// Step 6: cache write, only for fresh successful resolutions.
	if outcome.CacheStatus == CacheMiss {
		if ttl := effectiveTTL(v.policy.CacheTTL, expiresAt.Sub(now)); ttl > 0 {
			v.cache.Put(ctx, fingerprint, requestedResource, CachedDecision{
				Context:       resolved,
				IssuedAt:      issuedAt,
				ExpiresAt:     expiresAt,
				ExtendAllowed: extendAllowed,
			}, ttl)
		}
	}

	outcome.Success = true
	outcome.Context = &vc
	return outcome
}

func (v *EnhancedValidator) shouldExtend(issuedAt, expiresAt, now time.Time, allowed bool) bool {
	if !allowed || v.policy.ExtensionWindow <= 0 {
		return false
	}
	lifetime := expiresAt.Sub(issuedAt)
	if lifetime <= 0 {
		return false
	}
	consumed := float64(now.Sub(issuedAt)) / float64(lifetime)
	return consumed >= v.policy.ExtensionThreshold
}

func effectiveTTL(policyTTL, remaining time.Duration) time.Duration {
	if remaining < policyTTL {
		return remaining
	}
	return policyTTL
}
