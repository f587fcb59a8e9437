package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"photo-catalog/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the
// status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{w, http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics returns middleware that records Prometheus request metrics.
// The metrics and health endpoints themselves are not recorded.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath collapses photo IDs and tag names so metric label
// cardinality stays bounded.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	// /api/photos/{id}/... and /api/photos/{id}
	if len(parts) >= 4 && parts[1] == "api" && parts[2] == "photos" && parts[3] != "" && parts[3] != "export.csv" {
		parts[3] = "{id}"
		if len(parts) >= 6 && parts[4] == "tags" {
			parts[5] = "{tag}"
		}
	}
	return strings.Join(parts, "/")
}
