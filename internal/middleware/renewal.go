package middleware

import (
	"net/http"

	"case-gateway/internal/token"
)

// principalHeader carries the authenticated principal, set by the fronting
// authentication layer. An empty value means the request is anonymous.
const principalHeader = "X-Principal"

// Principal returns the authenticated principal for a request, empty when
// the request is anonymous.
func Principal(r *http.Request) string {
	return r.Header.Get(principalHeader)
}

// TokenRenewalMiddleware runs the proactive renewal check once per inbound
// request, for authenticated principals only. The check is advisory: the
// request always proceeds whatever the renewal outcome.
func TokenRenewalMiddleware(scheduler *token.Scheduler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheduler.CheckAndRenew(r.Context(), Principal(r) != "")
			next.ServeHTTP(w, r)
		})
	}
}
