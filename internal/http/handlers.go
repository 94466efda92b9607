package http

import (
	"context"
	"net/http"
	"time"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/metrics"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/middleware/security"
	"rewards/internal/middleware/trace"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks templates and, when configured, the data backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WithComponent(log.ComponentBackend).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	JSON(httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

type statsResponse struct {
	Uptime    string                    `json:"uptime"`
	Rewards   *metrics.Snapshot         `json:"rewards,omitempty"`
	RateLimit ratelimit.Metrics         `json:"rateLimit"`
	Security  security.DetectionMetrics `json:"security"`
	Requests  trace.Metrics             `json:"requests"`
}

// handleStats is a JSON digest of the counters for dashboards that do not
// scrape /metrics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		RateLimit: s.rateLimiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
		Requests:  s.tracer.GetMetrics(),
	}
	if s.metrics != nil {
		snap := s.metrics.Snapshot(s.cacheName)
		resp.Rewards = &snap
	}
	JSON(http.StatusOK, resp).Write(w)
}

type indexData struct {
	Customers []core.Customer
	Selected  string
	From      string
	To        string
	Today     string
	CanRecord bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if s.templates == nil {
		logger.WithComponent(log.ComponentTemplate).ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	customers, err := s.rewards.Customers(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Customer list error", log.FieldError, err, log.FieldOperation, log.OpList)
		customers = nil
	}

	q := r.URL.Query()
	data := indexData{
		Customers: customers,
		Selected:  sanitizeInput(q.Get("customer")),
		From:      sanitizeInput(q.Get("from")),
		To:        sanitizeInput(q.Get("to")),
		Today:     time.Now().In(s.loc).Format("2006-01-02"),
		CanRecord: s.transactions != nil,
	}
	if data.Selected == "" && len(customers) > 0 {
		data.Selected = customers[0].ID
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.ErrorContext(ctx, "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}
