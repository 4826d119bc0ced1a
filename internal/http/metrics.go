package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics holds in-process counters served by /metrics. Plain atomics;
// no metrics library, the counters are the whole surface.
type appMetrics struct {
	startedAt     time.Time
	requestsTotal atomic.Int64
	authFailures  atomic.Int64
	rateLimitHits atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{startedAt: time.Now()}
}

func (m *appMetrics) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requestsTotal.Add(1)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", s.metrics.requestsTotal.Load())

	fmt.Fprintf(w, "# HELP auth_failures_total Requests rejected for bad or missing credentials\n")
	fmt.Fprintf(w, "# TYPE auth_failures_total counter\n")
	fmt.Fprintf(w, "auth_failures_total %d\n\n", s.metrics.authFailures.Load())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", s.metrics.rateLimitHits.Load())

	if counter, ok := s.limiter.(interface{ ActiveKeys() int }); ok {
		fmt.Fprintf(w, "# HELP rate_limit_active_keys Keys currently tracked by the rate limiter\n")
		fmt.Fprintf(w, "# TYPE rate_limit_active_keys gauge\n")
		fmt.Fprintf(w, "rate_limit_active_keys %d\n\n", counter.ActiveKeys())
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Seconds since process start\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.metrics.startedAt).Seconds())
}
