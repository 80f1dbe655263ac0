// Package requestid assigns a correlation ID to every request. The same ID
// keys the comparison record for the request, which is what lets duplicate
// audit writes collapse into one.
package requestid

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/requestcontext"
)

// Header carries the caller-supplied correlation ID, when present.
const Header = "X-Request-ID"

// Middleware stores a request ID and a request-scoped "now" in the context.
// A caller-supplied X-Request-ID is honored so retried requests keep their
// identity; otherwise a fresh UUID is generated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		ctx = requestcontext.WithTime(ctx, time.Now())
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
