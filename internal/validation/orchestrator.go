package validation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"vigil/internal/audit"
	"vigil/internal/validation/metrics"
	"vigil/pkg/requestcontext"
)

// Request is one validation attempt as the transport layer hands it over.
type Request struct {
	RawCredential string
	TenantID      string
	Resource      string
}

// Sink receives the comparison record for a request. Publishing must never
// block the request path; the audit publisher satisfies that.
type Sink interface {
	Publish(record audit.ComparisonRecord)
}

// LegacyRunner and EnhancedRunner are the validator surfaces the
// orchestrator drives. The concrete validators satisfy them.
type LegacyRunner interface {
	Validate(ctx context.Context, rawCredential string) Outcome
}

type EnhancedRunner interface {
	Validate(ctx context.Context, rawCredential, requestedTenant, requestedResource string) Outcome
}

// Orchestrator runs both validators concurrently for every request and
// applies the fail-safe selection rule: the caller sees the legacy outcome
// unless promotion has been explicitly switched on.
type Orchestrator struct {
	legacy     LegacyRunner
	enhanced   EnhancedRunner
	translator Translator
	sink       Sink
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer

	// timeout bounds each validator run individually. A hung validator
	// becomes an internal fault for that side only.
	timeout time.Duration
	// promoteEnhanced surfaces the enhanced outcome to callers. Off in
	// shadow mode.
	promoteEnhanced bool
}

// NewOrchestrator wires the parallel validation pipeline.
func NewOrchestrator(
	legacy LegacyRunner,
	enhanced EnhancedRunner,
	translator Translator,
	sink Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
	tracer trace.Tracer,
	timeout time.Duration,
	promoteEnhanced bool,
) *Orchestrator {
	return &Orchestrator{
		legacy:          legacy,
		enhanced:        enhanced,
		translator:      translator,
		sink:            sink,
		metrics:         m,
		logger:          logger,
		tracer:          tracer,
		timeout:         timeout,
		promoteEnhanced: promoteEnhanced,
	}
}

// ValidateRequest runs the legacy and enhanced validators concurrently,
// records the comparison, and returns the caller-visible decision. An
// enhanced-side failure of any kind, including panic or timeout, never
// changes what the caller sees while the legacy outcome is authoritative.
func (o *Orchestrator) ValidateRequest(ctx context.Context, req Request) Decision {
	requestID := requestcontext.RequestID(ctx)

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "validation.ValidateRequest")
		defer span.End()
	}

	var legacyOut, enhancedOut Outcome
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		legacyOut = o.runValidator(gctx, OriginLegacy, func(vctx context.Context) Outcome {
			return o.legacy.Validate(vctx, req.RawCredential)
		})
		return nil
	})
	g.Go(func() error {
		enhancedOut = o.runValidator(gctx, OriginEnhanced, func(vctx context.Context) Outcome {
			return o.enhanced.Validate(vctx, req.RawCredential, req.TenantID, req.Resource)
		})
		return nil
	})
	// Both runs recover their own failures and return nil.
	_ = g.Wait()

	o.observe(legacyOut)
	o.observe(enhancedOut)
	agree := outcomesAgree(legacyOut, enhancedOut)
	o.metrics.ObserveAgreement(agree)

	selected := legacyOut
	if o.promoteEnhanced {
		selected = enhancedOut
	}

	decision := Decision{RequestID: requestID, Allowed: selected.Success}
	if selected.Success {
		decision.Context = selected.Context
	} else {
		translated := o.translator.Translate(selected.ErrorKind, selected.Validator)
		decision.Error = &translated
	}

	if !agree {
		o.logger.InfoContext(ctx, "validator outcomes diverged",
			"request_id", requestID,
			"legacy_success", legacyOut.Success,
			"legacy_error_kind", string(legacyOut.ErrorKind),
			"enhanced_success", enhancedOut.Success,
			"enhanced_error_kind", string(enhancedOut.ErrorKind),
		)
	}

	if span != nil {
		span.SetAttributes(
			attribute.String("request.id", requestID),
			attribute.String("request.tenant", req.TenantID),
			attribute.Bool("validation.agree", agree),
			attribute.String("validation.selected", string(selected.Validator)),
			attribute.Bool("validation.allowed", decision.Allowed),
		)
	}

	record := o.buildRecord(ctx, requestID, legacyOut, enhancedOut, selected, agree, decision)
	o.sink.Publish(record)

	return decision
}

// runValidator executes one validator with its own timeout and panic
// isolation. Both failure modes collapse to an internal fault outcome so one
// side can never take the other down.
func (o *Orchestrator) runValidator(ctx context.Context, origin Origin, fn func(context.Context) Outcome) Outcome {
	vctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.ErrorContext(ctx, "validator panicked",
					"validator", string(origin),
					"panic", r,
				)
				done <- Outcome{
					Validator:   origin,
					ErrorKind:   KindInternalFault,
					CacheStatus: CacheNotApplicable,
					Duration:    time.Since(start),
				}
			}
		}()
		done <- fn(vctx)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-vctx.Done():
		return Outcome{
			Validator:   origin,
			ErrorKind:   KindInternalFault,
			CacheStatus: CacheNotApplicable,
			Duration:    time.Since(start),
		}
	}
}

func (o *Orchestrator) observe(out Outcome) {
	o.metrics.ObserveOutcome(string(out.Validator), out.Success, string(out.ErrorKind), out.Duration)
	if out.CrossTenantBlock {
		o.metrics.IncCrossTenantBlock()
	}
	if out.ExtensionAttempted {
		switch {
		case out.ExtensionApplied:
			o.metrics.IncExtension("applied")
		case out.ExtensionFailed:
			o.metrics.IncExtension("failed")
		default:
			o.metrics.IncExtension("noop")
		}
	}
}

// outcomesAgree defines agreement for the comparison record: same
// success/failure verdict, and on success the same tenant and access level,
// on failure the same error kind. A risk-degraded access level counts as
// divergence on purpose; that is exactly the signal the rollout reads.
func outcomesAgree(a, b Outcome) bool {
	if a.Success != b.Success {
		return false
	}
	if a.Success {
		return a.Context.TenantID == b.Context.TenantID && a.Context.Access == b.Context.Access
	}
	return a.ErrorKind == b.ErrorKind
}

func (o *Orchestrator) buildRecord(
	ctx context.Context,
	requestID string,
	legacyOut, enhancedOut, selected Outcome,
	agree bool,
	decision Decision,
) audit.ComparisonRecord {
	record := audit.ComparisonRecord{
		RequestID:  requestID,
		RecordedAt: requestcontext.Now(ctx),

		Legacy:   toOutcomeRecord(legacyOut),
		Enhanced: toOutcomeRecord(enhancedOut),

		Selected:  string(selected.Validator),
		Disrupted: selected.Validator != OriginLegacy && !agree,

		Agree:            agree,
		PerformanceDelta: legacyOut.Duration - enhancedOut.Duration,

		CrossTenantBlock:   enhancedOut.CrossTenantBlock,
		ExtensionAttempted: enhancedOut.ExtensionAttempted,
		ExtensionApplied:   enhancedOut.ExtensionApplied,
		ExtensionFailed:    enhancedOut.ExtensionFailed,

		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if decision.Error != nil {
		record.TranslatedCategory = string(decision.Error.Category)
	}
	return record
}

func toOutcomeRecord(out Outcome) audit.OutcomeRecord {
	record := audit.OutcomeRecord{
		Validator:   string(out.Validator),
		Success:     out.Success,
		ErrorKind:   string(out.ErrorKind),
		Duration:    out.Duration,
		CacheStatus: string(out.CacheStatus),
	}
	if out.Context != nil {
		record.TenantID = out.Context.TenantID
		record.Access = string(out.Context.Access)
	}
	if out.Success {
		record.ErrorKind = ""
	}
	return record
}
