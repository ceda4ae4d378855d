// Package middleware provides HTTP middleware for the orchestrator's
// applications/httpapi surface.
package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ops-intel/orchestrator/infrastructure/logging"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// written for logging/metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer when it supports flushing, so
// streaming handlers behind this wrapper can still flush.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingMiddleware assigns (or propagates) a trace ID and logs each
// request's method, path, status and duration.
func LoggingMiddleware(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)

			r.Header.Set("X-Trace-ID", traceID)
			w.Header().Set("X-Trace-ID", traceID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			logger.LogRequest(ctx, r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

// TenantMiddleware propagates the X-Tenant-ID header into request context,
// matching the teacher's trace-ID propagation idiom.
func TenantMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get("X-Tenant-ID")
			if tenantID != "" {
				r = r.WithContext(logging.WithTenantID(r.Context(), tenantID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
