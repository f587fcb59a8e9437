// Package middleware provides HTTP middleware for request logging and
// Prometheus metrics.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"photo-catalog/internal/logging"
)

// responseWriter wraps http.ResponseWriter to capture status code and
// bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// sanitizeLogField removes control characters that could be used for
// log injection: newlines, null bytes, and ANSI escape sequences.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\x00' || r == '\x1b':
			continue
		case r < 0x20 && r != '\t':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logger returns HTTP request logging middleware. Health and metrics
// probes are logged at debug level only.
func Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			path := sanitizeLogField(r.URL.Path)
			if quietPaths[r.URL.Path] {
				logging.Debug("%s %s %d %dB %s", r.Method, path, wrapped.statusCode, wrapped.bytesWritten, duration.Round(time.Microsecond))
				return
			}
			logging.Info("%s %s %d %dB %s", r.Method, path, wrapped.statusCode, wrapped.bytesWritten, duration.Round(time.Microsecond))
		})
	}
}

var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}
