// Package httptransport is the thin HTTP layer. Handlers delegate to the
// orchestrator and readiness evaluator without embedding validation logic.
package httptransport

import (
	"context"
	"net/http"
	"strings"
	"time"

	"vigil/internal/readiness"
	"vigil/internal/validation"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

// Gateway is the orchestrator as the transport sees it.
type Gateway interface {
	ValidateRequest(ctx context.Context, req validation.Request) validation.Decision
}

// ReadinessEvaluator computes cutover snapshots over a trailing window.
type ReadinessEvaluator interface {
	Evaluate(ctx context.Context, start, end time.Time) (*readiness.Snapshot, error)
}

type validateRequest struct {
	TenantID string `json:"tenant_id"`
	Resource string `json:"resource"`
}

type contextResponse struct {
	TenantID  string  `json:"tenant_id"`
	UserID    string  `json:"user_id,omitempty"`
	Access    string  `json:"access"`
	RiskScore float64 `json:"risk_score"`
}

type validateResponse struct {
	RequestID string                      `json:"request_id"`
	Allowed   bool                        `json:"allowed"`
	Context   *contextResponse            `json:"context,omitempty"`
	Error     *validation.UserFacingError `json:"error,omitempty"`
}

// ValidateHandler serves the gateway's single data-path endpoint.
type ValidateHandler struct {
	gateway Gateway
}

func NewValidateHandler(gateway Gateway) *ValidateHandler {
	return &ValidateHandler{gateway: gateway}
}

// ServeHTTP handles POST /v1/validate. Denials are data, not transport
// errors: the response is 200 with allowed=false and a translated error.
// Only a malformed request shape earns a 4xx.
func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rawCredential, err := bearerToken(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := httputil.Decode[validateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.TenantID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "tenant_id is required"))
		return
	}
	if req.Resource == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "resource is required"))
		return
	}

	decision := h.gateway.ValidateRequest(r.Context(), validation.Request{
		RawCredential: rawCredential,
		TenantID:      req.TenantID,
		Resource:      req.Resource,
	})

	resp := validateResponse{
		RequestID: decision.RequestID,
		Allowed:   decision.Allowed,
		Error:     decision.Error,
	}
	if decision.Context != nil {
		resp.Context = &contextResponse{
			TenantID:  decision.Context.TenantID,
			UserID:    decision.Context.UserID,
			Access:    string(decision.Context.Access),
			RiskScore: decision.Context.RiskScore,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "missing Authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "Authorization header must be a Bearer token")
	}
	return token, nil
}

// ReadinessHandler serves GET /v1/readiness.
type ReadinessHandler struct {
	evaluator     ReadinessEvaluator
	defaultWindow time.Duration
}

func NewReadinessHandler(evaluator ReadinessEvaluator, defaultWindow time.Duration) *ReadinessHandler {
	return &ReadinessHandler{evaluator: evaluator, defaultWindow: defaultWindow}
}

func (h *ReadinessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window := h.defaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "window must be a positive duration"))
			return
		}
		window = parsed
	}

	end := requestcontext.Now(r.Context())
	snapshot, err := h.evaluator.Evaluate(r.Context(), end.Add(-window), end)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "readiness evaluation failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}
