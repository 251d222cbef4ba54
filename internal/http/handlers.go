package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.pinger == nil:
		checks["backend"] = "not_checked"
	default:
		if err := s.pinger.Ping(ctx); err != nil {
			checks["backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	stats := s.dashboard.Stats()

	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s %d\n\n", name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", traceMetrics.TotalRequests)
	counter("http_server_errors_total", "Responses with a 5xx status", traceMetrics.ServerErrors)
	gauge("http_response_time_avg_microseconds", "Average response time", traceMetrics.AverageResponseTime)

	counter("expenses_created_total", "Expenses created through the API", s.expensesCreated.Load())
	counter("expense_create_failures_total", "Expense creates the record store rejected", s.createFailures.Load())

	counter("snapshot_cache_hits_total", "Dashboard snapshot cache hits", stats.CacheHits)
	counter("snapshot_cache_misses_total", "Dashboard snapshot cache misses", stats.CacheMisses)
	counter("snapshot_fetches_total", "Record store fetches", stats.Fetches)
	counter("snapshot_fetch_failures_total", "Record store fetches that failed", stats.FetchFailures)
	counter("snapshot_cache_expired_total", "Cached snapshots dropped after the TTL", stats.CacheExpired)

	counter("security_suspicious_requests_total", "Requests matching scanner patterns", securityMetrics.SuspiciousRequests)
	counter("security_blocked_requests_total", "Suspicious requests answered with 404", securityMetrics.BlockedRequests)
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	gauge("rate_limit_clients", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)

	gauge("uptime_seconds", "Seconds since the server started", int64(s.now().Sub(s.started).Seconds()))
}
