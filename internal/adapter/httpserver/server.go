// Package httpserver serves the local status API: session and connection
// state, the notification log, toasts and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/app"
	"github.com/pscheid92/leavenotify/internal/domain"
)

type appService interface {
	Status(ctx context.Context) (app.Status, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Logout(ctx context.Context) (bool, error)

	Notifications(ctx context.Context) ([]domain.NotificationRecord, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context) error
	RemoveNotification(ctx context.Context, id uuid.UUID) error
	ClearNotifications(ctx context.Context) error

	Toasts(ctx context.Context) ([]domain.Toast, error)
	DismissToast(ctx context.Context, id int) (bool, error)

	ConnectedUsers(ctx context.Context) ([]domain.ConnectedUser, bool, error)
	LeaveRequests(ctx context.Context, status domain.LeaveRequestStatus) ([]domain.LeaveRequest, error)
	RefreshLeaveRequests(ctx context.Context) error
}

var _ appService = (*app.App)(nil)

type Server struct {
	echo         *echo.Echo
	addr         string
	app          appService
	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer registers the HTTP metrics on registry and serves it on /metrics.
func NewServer(addr string, app appService, registry *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		addr:         addr,
		app:          app,
		registry:     registry,
		httpMetrics:  metrics.NewHTTPMetrics(registry),
		healthChecks: healthChecks,
		startTime:    time.Now(),
	}
	srv.registerRoutes()
	return srv
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start() error {
	slog.Info("Starting status API", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
