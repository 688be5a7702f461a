package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth reports liveness. It never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the database and reports each dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.rateLimiter.ActiveClients(),
			"status":         "ok",
		},
	}
	ready := true

	if s.stores.DB == nil {
		checks["database"] = "not_configured"
		ready = false
	} else if err := s.stores.DB.Ping(ctx); err != nil {
		checks["database"] = "failed"
		ready = false
		s.logger.WarnContext(ctx, "Readiness check failed", "check", "database", "error", err)
	} else {
		checks["database"] = "ok"
	}

	data := map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if !ready {
		data["status"] = "not_ready"
		resp := NewErrorResponse(http.StatusServiceUnavailable, "Service not ready")
		resp.Data(data).Write(w)
		return
	}
	NewResponse().Data(data).Write(w)
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", rateLimitMetrics.ClientCount)
	metric("security_suspicious_requests_total", "counter", "Requests matching an attack pattern", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Seconds since the server started", int64(time.Since(s.started).Seconds()))
}
