package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/audit"
	"vigil/pkg/requestcontext"
)

type stubLegacy struct {
	outcome Outcome
}

func (s stubLegacy) Validate(context.Context, string) Outcome {
	out := s.outcome
	out.Validator = OriginLegacy
	return out
}

type stubEnhanced struct {
	outcome Outcome
	delay   time.Duration
	panics  bool
}

func (s stubEnhanced) Validate(ctx context.Context, _, _, _ string) Outcome {
	if s.panics {
		panic("enhanced validator blew up")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	out := s.outcome
	out.Validator = OriginEnhanced
	return out
}

type stubTranslator struct {
	calls []ErrorKind
}

func (s *stubTranslator) Translate(kind ErrorKind, _ Origin) UserFacingError {
	s.calls = append(s.calls, kind)
	category := CategoryInvalidCredentials
	switch kind {
	case KindCrossTenantDenied, KindAccessInsufficient:
		category = CategoryAccessDenied
	case KindInternalFault:
		category = CategoryUnavailable
	}
	return UserFacingError{Category: category, Message: "translated"}
}

type captureSink struct {
	records []audit.ComparisonRecord
}

func (s *captureSink) Publish(record audit.ComparisonRecord) {
	s.records = append(s.records, record)
}

func newTestOrchestrator(legacy LegacyRunner, enhanced EnhancedRunner, sink Sink, promote bool) *Orchestrator {
	return NewOrchestrator(legacy, enhanced, &stubTranslator{}, sink, nil, discardLogger(), nil, 100*time.Millisecond, promote)
}

func allowedOutcome(tenant string, access AccessLevel) Outcome {
	return Outcome{
		Success:     true,
		Context:     &Context{TenantID: tenant, Access: access, RiskScore: 0.3},
		CacheStatus: CacheNotApplicable,
	}
}

func deniedOutcome(kind ErrorKind) Outcome {
	return Outcome{ErrorKind: kind, CacheStatus: CacheNotApplicable}
}

func TestOrchestratorShadowModeLegacyWins(t *testing.T) {
	sink := &captureSink{}
	o := newTestOrchestrator(
		stubLegacy{outcome: allowedOutcome("tenant-a", AccessWrite)},
		stubEnhanced{outcome: deniedOutcome(KindCrossTenantDenied)},
		sink,
		false,
	)

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	decision := o.ValidateRequest(ctx, Request{RawCredential: "vak_x", TenantID: "tenant-b", Resource: "reports/weekly"})

	assert.True(t, decision.Allowed, "enhanced denial must not leak in shadow mode")
	assert.Equal(t, "req-1", decision.RequestID)
	require.NotNil(t, decision.Context)
	assert.Nil(t, decision.Error)

	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.Equal(t, "req-1", record.RequestID)
	assert.Equal(t, string(OriginLegacy), record.Selected)
	assert.False(t, record.Disrupted)
	assert.False(t, record.Agree)
	assert.True(t, record.Complete())
}

func TestOrchestratorAgreement(t *testing.T) {
	tests := []struct {
		name      string
		legacy    Outcome
		enhanced  Outcome
		wantAgree bool
	}{
		{
			name:      "both allow same identity",
			legacy:    allowedOutcome("tenant-a", AccessWrite),
			enhanced:  allowedOutcome("tenant-a", AccessWrite),
			wantAgree: true,
		},
		{
			name:      "degraded access diverges",
			legacy:    allowedOutcome("tenant-a", AccessWrite),
			enhanced:  allowedOutcome("tenant-a", AccessRead),
			wantAgree: false,
		},
		{
			name:      "both deny same kind",
			legacy:    deniedOutcome(KindExpired),
			enhanced:  deniedOutcome(KindExpired),
			wantAgree: true,
		},
		{
			name:      "deny kinds differ",
			legacy:    deniedOutcome(KindNotFound),
			enhanced:  deniedOutcome(KindCrossTenantDenied),
			wantAgree: false,
		},
		{
			name:      "verdicts differ",
			legacy:    allowedOutcome("tenant-a", AccessWrite),
			enhanced:  deniedOutcome(KindAccessInsufficient),
			wantAgree: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &captureSink{}
			o := newTestOrchestrator(stubLegacy{outcome: tt.legacy}, stubEnhanced{outcome: tt.enhanced}, sink, false)

			o.ValidateRequest(context.Background(), Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

			require.Len(t, sink.records, 1)
			assert.Equal(t, tt.wantAgree, sink.records[0].Agree)
		})
	}
}

func TestOrchestratorEnhancedPanicIsolated(t *testing.T) {
	sink := &captureSink{}
	o := newTestOrchestrator(
		stubLegacy{outcome: allowedOutcome("tenant-a", AccessRead)},
		stubEnhanced{panics: true},
		sink,
		false,
	)

	decision := o.ValidateRequest(context.Background(), Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

	assert.True(t, decision.Allowed)
	require.Len(t, sink.records, 1)
	assert.Equal(t, string(KindInternalFault), sink.records[0].Enhanced.ErrorKind)
	assert.True(t, sink.records[0].Legacy.Success)
}

func TestOrchestratorEnhancedTimeoutIsolated(t *testing.T) {
	sink := &captureSink{}
	o := newTestOrchestrator(
		stubLegacy{outcome: allowedOutcome("tenant-a", AccessRead)},
		stubEnhanced{outcome: allowedOutcome("tenant-a", AccessRead), delay: 5 * time.Second},
		sink,
		false,
	)

	start := time.Now()
	decision := o.ValidateRequest(context.Background(), Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

	assert.True(t, decision.Allowed)
	assert.Less(t, time.Since(start), time.Second, "a hung validator must not hold the request")
	require.Len(t, sink.records, 1)
	assert.Equal(t, string(KindInternalFault), sink.records[0].Enhanced.ErrorKind)
}

func TestOrchestratorPromotedEnhancedWins(t *testing.T) {
	sink := &captureSink{}
	o := newTestOrchestrator(
		stubLegacy{outcome: deniedOutcome(KindNotFound)},
		stubEnhanced{outcome: allowedOutcome("tenant-a", AccessWrite)},
		sink,
		true,
	)

	decision := o.ValidateRequest(context.Background(), Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

	assert.True(t, decision.Allowed)
	require.Len(t, sink.records, 1)
	assert.Equal(t, string(OriginEnhanced), sink.records[0].Selected)
	assert.True(t, sink.records[0].Disrupted)
}

func TestOrchestratorTranslatesSelectedFailure(t *testing.T) {
	sink := &captureSink{}
	translator := &stubTranslator{}
	o := NewOrchestrator(
		stubLegacy{outcome: deniedOutcome(KindExpired)},
		stubEnhanced{outcome: deniedOutcome(KindExpired)},
		translator,
		sink,
		nil,
		discardLogger(),
		nil,
		100*time.Millisecond,
		false,
	)

	decision := o.ValidateRequest(context.Background(), Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

	assert.False(t, decision.Allowed)
	require.NotNil(t, decision.Error)
	assert.Equal(t, CategoryInvalidCredentials, decision.Error.Category)
	assert.Equal(t, []ErrorKind{KindExpired}, translator.calls)

	require.Len(t, sink.records, 1)
	assert.Equal(t, string(CategoryInvalidCredentials), sink.records[0].TranslatedCategory)
}

func TestOrchestratorRecordCarriesEnhancedFacts(t *testing.T) {
	sink := &captureSink{}
	enhancedOut := allowedOutcome("tenant-a", AccessWrite)
	enhancedOut.ExtensionAttempted = true
	enhancedOut.ExtensionApplied = true
	o := newTestOrchestrator(stubLegacy{outcome: allowedOutcome("tenant-a", AccessWrite)}, stubEnhanced{outcome: enhancedOut}, sink, false)

	ctx := requestcontext.WithClientIP(context.Background(), "203.0.113.9")
	ctx = requestcontext.WithUserAgent(ctx, "curl/8")
	o.ValidateRequest(ctx, Request{RawCredential: "vak_x", TenantID: "tenant-a", Resource: "r"})

	require.Len(t, sink.records, 1)
	record := sink.records[0]
	assert.True(t, record.ExtensionAttempted)
	assert.True(t, record.ExtensionApplied)
	assert.Equal(t, "203.0.113.9", record.ClientIP)
	assert.Equal(t, "curl/8", record.UserAgent)
}
