package middleware

import (
	"net/http"
	"time"

	"github.com/vango-dev/cadview/pkg/metrics"
)

// Prometheus records request count and latency for every request handled by
// next. A nil m disables recording.
func Prometheus(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			m.ObserveRequest(routePattern(r), rec.status, time.Since(start))
		})
	}
}
