package validation

import (
	"sort"
	"strings"
	"time"

	"vigil/internal/platform/config"
	"vigil/internal/store"
)

// Risk scoring weights. The ceiling that triggers access degradation is
// configuration; these weights shape how signals combine beneath it.
const (
	riskNeutral          = 0.5
	riskBase             = 0.25
	riskAgeWeight        = 0.35
	riskFailureWeight    = 0.05
	riskFailureCap       = 10
	riskSensitivityWeigh = 0.3
	riskAccessWeight     = 0.05
)

// initialRisk scores a credential from signals available at resolution time:
// how much of its lifetime is consumed and how many prior failures the store
// has seen. Absent usable signals the score is the neutral midpoint.
func initialRisk(record *store.CredentialRecord, now time.Time) float64 {
	lifetime := record.Lifetime()
	if lifetime <= 0 || record.IssuedAt.IsZero() {
		return riskNeutral
	}

	ageFraction := float64(now.Sub(record.IssuedAt)) / float64(lifetime)
	ageFraction = clamp01(ageFraction)

	failures := record.FailureCount
	if failures > riskFailureCap {
		failures = riskFailureCap
	}

	return clamp01(riskBase + riskAgeWeight*ageFraction + riskFailureWeight*float64(failures))
}

// refineRisk folds in what the request is asking for: how sensitive the
// resource is and how much privilege it requires.
func refineRisk(initial, sensitivity float64, required AccessLevel) float64 {
	return clamp01(initial + riskSensitivityWeigh*sensitivity + riskAccessWeight*float64(accessRanks[required]))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ResourcePolicy describes how one resource class is protected.
type ResourcePolicy struct {
	Sensitivity float64
	MinAccess   AccessLevel
}

// defaultResourcePolicy applies to resources no prefix matches: neutral
// sensitivity, readable by anyone the store authenticated.
var defaultResourcePolicy = ResourcePolicy{Sensitivity: riskNeutral, MinAccess: AccessRead}

// PolicyTable resolves a resource key to its policy by longest-prefix match.
// Immutable after construction, so lookups need no locking.
type PolicyTable struct {
	prefixes []string // sorted longest-first
	policies map[string]ResourcePolicy
}

// NewPolicyTable validates and indexes the configured resource policies.
func NewPolicyTable(cfg map[string]config.ResourcePolicy) (*PolicyTable, error) {
	table := &PolicyTable{policies: make(map[string]ResourcePolicy, len(cfg))}
	for prefix, raw := range cfg {
		minAccess := AccessRead
		if raw.MinAccess != "" {
			parsed, err := ParseAccessLevel(raw.MinAccess)
			if err != nil {
				return nil, err
			}
			minAccess = parsed
		}
		table.policies[prefix] = ResourcePolicy{
			Sensitivity: clamp01(raw.Sensitivity),
			MinAccess:   minAccess,
		}
		table.prefixes = append(table.prefixes, prefix)
	}
	sort.Slice(table.prefixes, func(i, j int) bool {
		return len(table.prefixes[i]) > len(table.prefixes[j])
	})
	return table, nil
}

// For returns the policy for a resource key, falling back to the neutral
// default when nothing matches.
func (t *PolicyTable) For(resource string) ResourcePolicy {
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(resource, prefix) {
			return t.policies[prefix]
		}
	}
	return defaultResourcePolicy
}
