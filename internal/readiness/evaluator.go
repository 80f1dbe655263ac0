// Package readiness derives the cutover posture from the audit trail. It
// never flips anything itself: the output is a snapshot of named criteria
// that operators read before promoting the enhanced validator.
package readiness

import (
	"context"
	"fmt"
	"time"

	"vigil/internal/audit"
	"vigil/internal/platform/config"
	"vigil/internal/validation"
)

// CacheStats is the slice of the cache manager the evaluator reads. Both
// cache implementations satisfy it.
type CacheStats interface {
	Stats() (hits, misses, evictions uint64)
}

// Criterion is one named readiness gate with its target and observed value.
type Criterion struct {
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Actual float64 `json:"actual"`
	Met    bool    `json:"met"`
}

// Snapshot is the evaluation result over one window.
type Snapshot struct {
	WindowStart   time.Time   `json:"window_start"`
	WindowEnd     time.Time   `json:"window_end"`
	TotalRequests int         `json:"total_requests"`
	Criteria      []Criterion `json:"criteria"`

	CacheHitRate        float64       `json:"cache_hit_rate"`
	AvgPerformanceDelta time.Duration `json:"avg_performance_delta_ns"`

	Ready bool `json:"ready"`
}

// Evaluator computes readiness snapshots from comparison records.
type Evaluator struct {
	store      audit.Store
	cacheStats CacheStats
	thresholds config.Readiness
}

// New constructs an evaluator. cacheStats may be nil when no cache counters
// are available.
func New(store audit.Store, cacheStats CacheStats, thresholds config.Readiness) *Evaluator {
	return &Evaluator{store: store, cacheStats: cacheStats, thresholds: thresholds}
}

// Evaluate computes every criterion over records in [start, end). A window
// with no traffic reports every rate criterion vacuously met; the operator
// sees TotalRequests and judges whether the window is meaningful.
func (e *Evaluator) Evaluate(ctx context.Context, start, end time.Time) (*Snapshot, error) {
	records, err := e.store.QueryWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("readiness: query window: %w", err)
	}

	total := len(records)
	var (
		disrupted       int
		legacySuccesses int
		bothSucceeded   int
		enhancedFaster  int
		complete        int
		tenantAttempts  int
		tenantBlocked   int
		extAttempted    int
		extSucceeded    int
		selectedFailed  int
		translated      int
		cacheHits       int
		cacheLookups    int
		totalDelta      time.Duration
	)
	for i := range records {
		r := &records[i]
		if r.Disrupted {
			disrupted++
		}
		if r.Legacy.Success {
			legacySuccesses++
			if r.Enhanced.Success {
				bothSucceeded++
			}
		}
		if r.PerformanceDelta >= 0 {
			enhancedFaster++
		}
		totalDelta += r.PerformanceDelta
		if r.Complete() {
			complete++
		}
		if r.CrossTenantBlock || r.Enhanced.ErrorKind == string(validation.KindCrossTenantDenied) {
			tenantAttempts++
			if !r.Enhanced.Success {
				tenantBlocked++
			}
		}
		if r.ExtensionAttempted {
			extAttempted++
			if !r.ExtensionFailed {
				extSucceeded++
			}
		}
		selectedSucceeded := r.Legacy.Success
		if r.Selected == string(validation.OriginEnhanced) {
			selectedSucceeded = r.Enhanced.Success
		}
		if !selectedSucceeded {
			selectedFailed++
			if r.TranslatedCategory != "" {
				translated++
			}
		}
		switch r.Enhanced.CacheStatus {
		case string(validation.CacheHit):
			cacheHits++
			cacheLookups++
		case string(validation.CacheMiss):
			cacheLookups++
		}
	}

	// Disruption is the one upper-bound criterion; an empty window has no
	// disruption.
	disruptionRate := 0.0
	if total > 0 {
		disruptionRate = float64(disrupted) / float64(total)
	}

	t := e.thresholds
	criteria := []Criterion{
		upperBound("disruption", t.MaxDisruption, disruptionRate),
		lowerBound("enhanced_success", t.MinEnhancedSuccess, rate(bothSucceeded, legacySuccesses)),
		lowerBound("performance_parity", t.MinPerformanceParity, rate(enhancedFaster, total)),
		lowerBound("logging_completeness", t.MinLoggingCompleteness, rate(complete, total)),
		lowerBound("cross_tenant_protection", t.MinCrossTenantBlock, rate(tenantBlocked, tenantAttempts)),
		lowerBound("token_extension_success", t.MinExtensionSuccess, rate(extSucceeded, extAttempted)),
		lowerBound("translation_coverage", t.MinTranslationCoverage, rate(translated, selectedFailed)),
	}

	snapshot := &Snapshot{
		WindowStart:   start,
		WindowEnd:     end,
		TotalRequests: total,
		Criteria:      criteria,
		CacheHitRate:  e.cacheHitRate(cacheHits, cacheLookups),
		Ready:         true,
	}
	if total > 0 {
		snapshot.AvgPerformanceDelta = totalDelta / time.Duration(total)
	}
	for _, c := range criteria {
		if !c.Met {
			snapshot.Ready = false
		}
	}
	return snapshot, nil
}

// cacheHitRate prefers the live cache counters when available; the windowed
// record-derived rate is the fallback.
func (e *Evaluator) cacheHitRate(windowHits, windowLookups int) float64 {
	if e.cacheStats != nil {
		hits, misses, _ := e.cacheStats.Stats()
		if hits+misses > 0 {
			return float64(hits) / float64(hits+misses)
		}
		return 0
	}
	return rate(windowHits, windowLookups)
}

// rate is vacuously 1.0 over an empty denominator.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 1.0
	}
	return float64(numerator) / float64(denominator)
}

func upperBound(name string, target, actual float64) Criterion {
	return Criterion{Name: name, Target: target, Actual: actual, Met: actual <= target}
}

func lowerBound(name string, target, actual float64) Criterion {
	return Criterion{Name: name, Target: target, Actual: actual, Met: actual >= target}
}
