package middleware

import (
	"net/http"
)

// HTMX records htmx request headers in the context. Catalog routes answer
// htmx with fragments and browsers with full pages, so responses vary on HX-Request.
func HTMX(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := HTMXRequest{
			Enabled: r.Header.Get("HX-Request") == "true",
			Boosted: r.Header.Get("HX-Boosted") == "true",
			Target:  r.Header.Get("HX-Target"),
			Trigger: r.Header.Get("HX-Trigger"),
		}
		w.Header().Add("Vary", "HX-Request")
		next.ServeHTTP(w, r.WithContext(WithHTMX(r.Context(), req)))
	})
}
