package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ops-intel/orchestrator/infrastructure/metrics"
)

// MetricsMiddleware records request count/duration/in-flight gauges for
// every request that passes through it.
func MetricsMiddleware(m *metrics.Metrics, service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.IncrementInFlight()
			defer m.DecrementInFlight()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			m.RecordHTTPRequest(service, r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode), time.Since(start))
		})
	}
}
