package middleware

import (
	"net/http"
)

// RequestSizeLimit caps the request body at maxBytes. Reads past the limit
// fail with *http.MaxBytesError, which httputil.DecodeJSON maps to 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
