package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/pkg/platform/httputil"
	"vigil/pkg/platform/middleware/metadata"
	"vigil/pkg/platform/middleware/requestid"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the public endpoints. Request ID and client metadata
// middleware run on every route so audit records and security logs always
// have their enrichment fields.
func NewRouter(validate *ValidateHandler, ready *ReadinessHandler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Method(http.MethodPost, "/v1/validate", validate)
	r.Method(http.MethodGet, "/v1/readiness", ready)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(checks))

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":     http.StatusText(status),
			"components": components,
		})
	}
}
