package http

import (
	"context"
	"net/http"

	"proiezioni/internal/middleware/ratelimit"
	"proiezioni/internal/middleware/security"
	"proiezioni/internal/middleware/trace"
	"proiezioni/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readinessView struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks every dependency and answers 503 if any fails.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	view := readinessView{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", c.Name, "error", err)
			view.Checks[c.Name] = err.Error()
			view.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		view.Checks[c.Name] = "ok"
	}
	NewHTMXResponse().Status(status).JSON(view).Write(w)
}

type metricsView struct {
	Projections services.CacheStats       `json:"projections"`
	HTTP        trace.Metrics             `json:"http"`
	RateLimit   ratelimit.Metrics         `json:"rate_limit"`
	Security    security.DetectionMetrics `json:"security"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().JSON(metricsView{
		Projections: s.scenarios.Stats(),
		HTTP:        s.tracer.GetMetrics(),
		RateLimit:   s.limiter.GetMetrics(),
		Security:    s.detector.GetMetrics(),
	}).Write(w)
}
