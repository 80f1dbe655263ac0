package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/audit"
	"vigil/internal/platform/config"
)

var testThresholds = config.Readiness{
	MaxDisruption:          0.001,
	MinEnhancedSuccess:     0.95,
	MinPerformanceParity:   0.5,
	MinLoggingCompleteness: 0.99,
	MinCrossTenantBlock:    1.0,
	MinExtensionSuccess:    0.95,
	MinTranslationCoverage: 1.0,
}

func agreementRecord(requestID string, recordedAt time.Time) audit.ComparisonRecord {
	return audit.ComparisonRecord{
		RequestID:        requestID,
		RecordedAt:       recordedAt,
		Legacy:           audit.OutcomeRecord{Validator: "legacy", Success: true, Duration: 3 * time.Millisecond, CacheStatus: "not_applicable"},
		Enhanced:         audit.OutcomeRecord{Validator: "enhanced", Success: true, Duration: time.Millisecond, CacheStatus: "miss"},
		Selected:         "legacy",
		Agree:            true,
		PerformanceDelta: 2 * time.Millisecond,
	}
}

func seedStore(t *testing.T, records ...audit.ComparisonRecord) *audit.MemoryStore {
	t.Helper()
	s := audit.NewMemoryStore()
	for _, r := range records {
		require.NoError(t, s.Append(context.Background(), r))
	}
	return s
}

func criterion(t *testing.T, s *Snapshot, name string) Criterion {
	t.Helper()
	for _, c := range s.Criteria {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("criterion %q not in snapshot", name)
	return Criterion{}
}

func TestEvaluateAllCriteriaMet(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := seedStore(t,
		agreementRecord("req-1", base.Add(time.Minute)),
		agreementRecord("req-2", base.Add(2*time.Minute)),
	)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.TotalRequests)
	assert.True(t, snapshot.Ready)
	for _, c := range snapshot.Criteria {
		assert.True(t, c.Met, "criterion %s: target %v actual %v", c.Name, c.Target, c.Actual)
	}
	assert.Equal(t, 2*time.Millisecond, snapshot.AvgPerformanceDelta)
}

func TestEvaluateDisruptionFailsGate(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	disrupted := agreementRecord("req-bad", base.Add(time.Minute))
	disrupted.Disrupted = true
	store := seedStore(t, agreementRecord("req-1", base.Add(time.Minute)), disrupted)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, snapshot.Ready)
	c := criterion(t, snapshot, "disruption")
	assert.False(t, c.Met)
	assert.InDelta(t, 0.5, c.Actual, 1e-9)
}

func TestEvaluateEnhancedRegressionFailsGate(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	regression := agreementRecord("req-regressed", base.Add(time.Minute))
	regression.Enhanced.Success = false
	regression.Enhanced.ErrorKind = "internal_fault"
	regression.Agree = false
	store := seedStore(t, regression)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, snapshot.Ready)
	assert.False(t, criterion(t, snapshot, "enhanced_success").Met)
}

func TestEvaluateExtensionFailures(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	applied := agreementRecord("req-applied", base.Add(time.Minute))
	applied.ExtensionAttempted = true
	applied.ExtensionApplied = true
	failed := agreementRecord("req-failed", base.Add(2*time.Minute))
	failed.ExtensionAttempted = true
	failed.ExtensionFailed = true
	store := seedStore(t, applied, failed)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	c := criterion(t, snapshot, "token_extension_success")
	assert.InDelta(t, 0.5, c.Actual, 1e-9)
	assert.False(t, c.Met)
}

func TestEvaluateTranslationCoverage(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	denied := agreementRecord("req-denied", base.Add(time.Minute))
	denied.Legacy.Success = false
	denied.Legacy.ErrorKind = "not_found"
	denied.Enhanced.Success = false
	denied.Enhanced.ErrorKind = "not_found"
	denied.TranslatedCategory = "invalid_credentials"
	untranslated := denied
	untranslated.RequestID = "req-raw"
	untranslated.TranslatedCategory = ""
	store := seedStore(t, denied, untranslated)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	c := criterion(t, snapshot, "translation_coverage")
	assert.InDelta(t, 0.5, c.Actual, 1e-9)
	assert.False(t, c.Met)
}

func TestEvaluateCrossTenantProtection(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	blocked := agreementRecord("req-blocked", base.Add(time.Minute))
	blocked.CrossTenantBlock = true
	blocked.Enhanced.Success = false
	blocked.Enhanced.ErrorKind = "cross_tenant_denied"
	blocked.Agree = false
	store := seedStore(t, blocked)
	e := New(store, nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)

	c := criterion(t, snapshot, "cross_tenant_protection")
	assert.Equal(t, 1.0, c.Actual)
	assert.True(t, c.Met)
}

func TestEvaluateEmptyWindow(t *testing.T) {
	e := New(audit.NewMemoryStore(), nil, testThresholds)

	snapshot, err := e.Evaluate(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	assert.Zero(t, snapshot.TotalRequests)
	assert.True(t, snapshot.Ready, "no traffic means no observed regressions")
	assert.Zero(t, criterion(t, snapshot, "disruption").Actual)
}

func TestEvaluateCacheHitRate(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	hit := agreementRecord("req-hit", base.Add(time.Minute))
	hit.Enhanced.CacheStatus = "hit"
	store := seedStore(t, agreementRecord("req-miss", base.Add(time.Minute)), hit)

	// Record-derived rate when no live counters exist.
	e := New(store, nil, testThresholds)
	snapshot, err := e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, snapshot.CacheHitRate, 1e-9)

	// Live counters win when present.
	e = New(store, stubStats{hits: 9, misses: 1}, testThresholds)
	snapshot, err = e.Evaluate(context.Background(), base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, snapshot.CacheHitRate, 1e-9)
}

type stubStats struct {
	hits, misses, evictions uint64
}

func (s stubStats) Stats() (uint64, uint64, uint64) {
	return s.hits, s.misses, s.evictions
}
