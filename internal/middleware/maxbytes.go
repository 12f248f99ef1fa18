package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes caps request bodies at 1 MiB. Asset payloads carry
// image references, not image data.
const DefaultMaxBodyBytes = 1 << 20

// MaxBytes caps request bodies. A declared Content-Length over the limit is
// refused with 413 before the handler runs; otherwise reads past the limit
// fail and the handler's JSON decode reports a bad request.
func MaxBytes(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Body == nil || r.Body == http.NoBody:
			case r.ContentLength > limit:
				writeError(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			default:
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
