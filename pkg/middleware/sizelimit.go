package middleware

import (
	"net/http"
	"strconv"
)

const (
	// DefaultMaxRequestSize applies when the configured limit is not positive
	DefaultMaxRequestSize = 10 << 20

	// MaxRequestSizeHeader reports the enforced limit to clients
	MaxRequestSizeHeader = "X-Max-Request-Size"
)

// RequestSizeLimit rejects bodies larger than maxSize bytes. A declared
// Content-Length over the limit is refused with 413 before the handler
// runs; longer streamed bodies fail when read.
func RequestSizeLimit(maxSize int64) func(http.Handler) http.Handler {
	if maxSize <= 0 {
		maxSize = DefaultMaxRequestSize
	}
	limit := strconv.FormatInt(maxSize, 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(MaxRequestSizeHeader, limit)
			if r.ContentLength > maxSize {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}
