package http

import (
	"net/http"
	"slices"
)

// withCORS lets browsers on the allowed origins call the API with credentials.
// A "*" entry allows every origin. Preflight requests end here with 204.
func withCORS(allowed []string, next http.Handler) http.Handler {
	allowAll := slices.Contains(allowed, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || (!allowAll && !slices.Contains(allowed, origin)) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")

		reqMethod := r.Header.Get("Access-Control-Request-Method")
		if r.Method != http.MethodOptions || reqMethod == "" {
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Methods", reqMethod)
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		h.Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
	})
}
