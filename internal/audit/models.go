// Package audit is the durable, append-only record of every parallel
// validation attempt. Comparison records are the canonical data the rollout
// decision reads; everything else (snapshots, metrics) is derived.
package audit

import "time"

// OutcomeRecord is the audit copy of one validator outcome. It is
// transport-agnostic on purpose so stores and sinks can fan out without
// importing the validation package.
type OutcomeRecord struct {
	Validator   string        `json:"validator"`
	Success     bool          `json:"success"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	TenantID    string        `json:"tenant_id,omitempty"`
	Access      string        `json:"access,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	CacheStatus string        `json:"cache_status"`
}

// ComparisonRecord pairs the two validator outcomes for one request.
// Exactly one record exists per orchestrated request; it is written once and
// never mutated. RequestID is the idempotency key: duplicate appends for the
// same request must not double count.
type ComparisonRecord struct {
	RequestID  string    `json:"request_id"`
	RecordedAt time.Time `json:"recorded_at"`

	Legacy   OutcomeRecord `json:"legacy"`
	Enhanced OutcomeRecord `json:"enhanced"`

	// Selected names the validator whose outcome the caller saw.
	Selected string `json:"selected"`
	// Disrupted is true when the caller-visible outcome differed from the
	// legacy outcome. With the fail-safe rule in force it is false by
	// construction; the readiness evaluator uses it to verify exactly that.
	Disrupted bool `json:"disrupted"`

	Agree            bool          `json:"agree"`
	PerformanceDelta time.Duration `json:"performance_delta_ns"` // legacy - enhanced

	CrossTenantBlock   bool `json:"cross_tenant_block"`
	ExtensionAttempted bool `json:"extension_attempted"`
	ExtensionApplied   bool `json:"extension_applied"`
	ExtensionFailed    bool `json:"extension_failed"`

	// TranslatedCategory is the user-facing category surfaced for a failed
	// caller-visible outcome; empty when the request was allowed.
	TranslatedCategory string `json:"translated_category,omitempty"`

	// Client enrichment, captured by middleware.
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Complete reports whether both validator outcomes were captured. Feeds the
// logging-completeness readiness criterion.
func (r *ComparisonRecord) Complete() bool {
	return r.Legacy.Validator != "" && r.Enhanced.Validator != ""
}
