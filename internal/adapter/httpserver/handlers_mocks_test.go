package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/leavenotify/internal/app"
	"github.com/pscheid92/leavenotify/internal/domain"
)

// --- Mock implementations ---

type mockAppService struct {
	statusFn         func(ctx context.Context) (app.Status, error)
	connectFn        func(ctx context.Context) error
	notificationsFn  func(ctx context.Context) ([]domain.NotificationRecord, error)
	markAsReadFn     func(ctx context.Context, id uuid.UUID) error
	removeFn         func(ctx context.Context, id uuid.UUID) error
	toastsFn         func(ctx context.Context) ([]domain.Toast, error)
	dismissFn        func(ctx context.Context, id int) (bool, error)
	connectedUsersFn func(ctx context.Context) ([]domain.ConnectedUser, bool, error)
	leaveRequestsFn  func(ctx context.Context, status domain.LeaveRequestStatus) ([]domain.LeaveRequest, error)
	refreshFn        func(ctx context.Context) error

	disconnects   int
	markedAll     int
	cleared       int
	logoutResults []bool
}

func (m *mockAppService) Status(ctx context.Context) (app.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx)
	}
	return app.Status{}, nil
}

func (m *mockAppService) Connect(ctx context.Context) error {
	if m.connectFn != nil {
		return m.connectFn(ctx)
	}
	return nil
}

func (m *mockAppService) Disconnect(context.Context) error {
	m.disconnects++
	return nil
}

func (m *mockAppService) Logout(context.Context) (bool, error) {
	if len(m.logoutResults) == 0 {
		return false, nil
	}
	r := m.logoutResults[0]
	m.logoutResults = m.logoutResults[1:]
	return r, nil
}

func (m *mockAppService) Notifications(ctx context.Context) ([]domain.NotificationRecord, error) {
	if m.notificationsFn != nil {
		return m.notificationsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	if m.markAsReadFn != nil {
		return m.markAsReadFn(ctx, id)
	}
	return nil
}

func (m *mockAppService) MarkAllAsRead(context.Context) error {
	m.markedAll++
	return nil
}

func (m *mockAppService) RemoveNotification(ctx context.Context, id uuid.UUID) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, id)
	}
	return nil
}

func (m *mockAppService) ClearNotifications(context.Context) error {
	m.cleared++
	return nil
}

func (m *mockAppService) Toasts(ctx context.Context) ([]domain.Toast, error) {
	if m.toastsFn != nil {
		return m.toastsFn(ctx)
	}
	return nil, nil
}

func (m *mockAppService) DismissToast(ctx context.Context, id int) (bool, error) {
	if m.dismissFn != nil {
		return m.dismissFn(ctx, id)
	}
	return true, nil
}

func (m *mockAppService) ConnectedUsers(ctx context.Context) ([]domain.ConnectedUser, bool, error) {
	if m.connectedUsersFn != nil {
		return m.connectedUsersFn(ctx)
	}
	return nil, false, nil
}

func (m *mockAppService) LeaveRequests(ctx context.Context, status domain.LeaveRequestStatus) ([]domain.LeaveRequest, error) {
	if m.leaveRequestsFn != nil {
		return m.leaveRequestsFn(ctx, status)
	}
	return nil, nil
}

func (m *mockAppService) RefreshLeaveRequests(ctx context.Context) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return nil
}

// --- Test helpers ---

func newTestServer(t *testing.T, app appService, checks ...HealthCheck) *Server {
	t.Helper()
	return NewServer("127.0.0.1:0", app, prometheus.NewRegistry(), checks)
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "127.0.0.1:4242"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func ok(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code >= http.StatusBadRequest {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}
