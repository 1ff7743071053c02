package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/leavenotify/internal/platform/version"
)

const (
	livenessProbeTimeout  = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe, e.g. the Redis store.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/healthz", s.handleLiveness)
	s.echo.GET("/healthz/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleLiveness answers 503 once the event loop no longer serves calls.
func (s *Server) handleLiveness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), livenessProbeTimeout)
	defer cancel()

	uptime := time.Since(s.startTime).Seconds()
	st, err := s.app.Status(ctx)
	if err != nil {
		return writeJSON(c, http.StatusServiceUnavailable, map[string]any{
			"status": "stalled",
			"uptime": uptime,
			"error":  err.Error(),
		})
	}
	return writeJSON(c, http.StatusOK, map[string]any{
		"status":     "ok",
		"uptime":     uptime,
		"connection": st.Connection.StateName,
	})
}

// handleReadiness runs every check and reports each result. Being logged
// out does not make the client unready.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.healthChecks))
	healthy := true
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			healthy = false
			continue
		}
		checks[hc.Name] = "ok"
	}

	if !healthy {
		return writeJSON(c, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "checks": checks})
	}
	return writeJSON(c, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}

func (s *Server) handleVersion(c echo.Context) error {
	return writeJSON(c, http.StatusOK, version.Get())
}
