package validation

import (
	"context"
	"time"

	"vigil/internal/credential"
)

// LegacyValidator is the pre-existing validation path: resolve, check expiry,
// check the tenant is active. No cross-tenant enforcement, no extension. Its
// outcome is the one returned to callers until the enhanced path earns
// promotion.
type LegacyValidator struct {
	resolver *Resolver
}

// NewLegacyValidator constructs the legacy path over a shared resolver.
func NewLegacyValidator(resolver *Resolver) *LegacyValidator {
	return &LegacyValidator{resolver: resolver}
}

// Validate runs the legacy checks against a raw bearer value.
func (v *LegacyValidator) Validate(ctx context.Context, rawCredential string) (outcome Outcome) {
	start := time.Now()
	outcome = Outcome{Validator: OriginLegacy, CacheStatus: CacheNotApplicable}
	defer func() { outcome.Duration = time.Since(start) }()

	cred, err := credential.Parse(rawCredential)
	if err != nil {
		outcome.ErrorKind = kindFromError(err)
		return outcome
	}

	resolution, err := v.resolver.Resolve(ctx, cred)
	if err != nil {
		outcome.ErrorKind = kindFromError(err)
		return outcome
	}

	if !resolution.Tenant.Active {
		// The legacy path has always folded inactive tenants into the
		// generic lookup failure.
		outcome.ErrorKind = KindNotFound
		return outcome
	}

	vc := resolution.Context
	outcome.Success = true
	outcome.Context = &vc
	return outcome
}
