package app

import (
	"context"

	"github.com/google/uuid"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/leaverequests"
)

// Status is the combined view served by the status API and the status command.
type Status struct {
	Authenticated bool                    `json:"authenticated"`
	Identity      *domain.Identity        `json:"identity,omitempty"`
	Connection    domain.ConnectionStatus `json:"connection"`
	Notifications int                     `json:"notifications"`
	Unread        int                     `json:"unread"`
	Toasts        int                     `json:"toasts"`
	LeaveRequests leaverequests.Status    `json:"leave_requests"`
}

func (a *App) Status(ctx context.Context) (Status, error) {
	var st Status
	err := a.loop.Call(ctx, func() {
		snap := a.session.Snapshot()
		st = Status{
			Authenticated: snap.Authenticated(),
			Identity:      snap.Identity,
			Connection:    a.conn.Status(),
			Notifications: len(a.dispatcher.Notifications()),
			Unread:        a.dispatcher.UnreadCount(),
			Toasts:        len(a.toasts.Toasts()),
			LeaveRequests: a.cache.Status(),
		}
	})
	return st, err
}

// ConnectionStatus does not go through the loop.
func (a *App) ConnectionStatus() domain.ConnectionStatus { return a.conn.Status() }

func (a *App) Connect(ctx context.Context) error {
	if !a.session.Authenticated() {
		return domain.ErrNoCredential
	}
	return a.loop.Call(ctx, func() { a.conn.Connect(ctx) })
}

func (a *App) Disconnect(ctx context.Context) error {
	return a.loop.Call(ctx, func() { a.conn.Disconnect(ctx) })
}

func (a *App) Notifications(ctx context.Context) ([]domain.NotificationRecord, error) {
	var out []domain.NotificationRecord
	err := a.loop.Call(ctx, func() { out = a.dispatcher.Notifications() })
	return out, err
}

func (a *App) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return a.callErr(ctx, func() error { return a.dispatcher.MarkAsRead(id) })
}

func (a *App) MarkAllAsRead(ctx context.Context) error {
	return a.loop.Call(ctx, a.dispatcher.MarkAllAsRead)
}

func (a *App) RemoveNotification(ctx context.Context, id uuid.UUID) error {
	return a.callErr(ctx, func() error { return a.dispatcher.Remove(id) })
}

func (a *App) ClearNotifications(ctx context.Context) error {
	return a.loop.Call(ctx, a.dispatcher.Clear)
}

func (a *App) Toasts(ctx context.Context) ([]domain.Toast, error) {
	var out []domain.Toast
	err := a.loop.Call(ctx, func() { out = a.toasts.Toasts() })
	return out, err
}

// DismissToast reports whether the toast was still shown.
func (a *App) DismissToast(ctx context.Context, id int) (bool, error) {
	var removed bool
	err := a.loop.Call(ctx, func() { removed = a.toasts.RemoveToast(id) })
	return removed, err
}

// ConnectedUsers asks the server for a fresh list and returns the latest one
// received so far. known is false until the first answer arrived.
func (a *App) ConnectedUsers(ctx context.Context) (users []domain.ConnectedUser, known bool, err error) {
	var sendErr error
	if err := a.loop.Call(ctx, func() {
		sendErr = a.conn.RequestConnectedUsers()
		users, known = a.dispatcher.ConnectedUsers()
	}); err != nil {
		return nil, false, err
	}
	return users, known, sendErr
}

// LeaveRequests returns the cached list, filtered by status when given.
func (a *App) LeaveRequests(ctx context.Context, status domain.LeaveRequestStatus) ([]domain.LeaveRequest, error) {
	var out []domain.LeaveRequest
	err := a.loop.Call(ctx, func() {
		switch status {
		case domain.StatusPending:
			out = a.cache.Pending()
		case domain.StatusApproved:
			out = a.cache.Approved()
		case domain.StatusRejected:
			out = a.cache.Rejected()
		default:
			out = a.cache.Requests()
		}
	})
	return out, err
}

// RefreshLeaveRequests triggers a background reload.
func (a *App) RefreshLeaveRequests(ctx context.Context) error {
	if !a.session.Authenticated() {
		return domain.ErrNoCredential
	}
	return a.loop.Call(ctx, a.cache.Refresh)
}

// HighlightedRequests lists requests recently announced as new.
func (a *App) HighlightedRequests(ctx context.Context) ([]int, error) {
	var out []int
	err := a.loop.Call(ctx, func() { out = a.cache.Highlighted() })
	return out, err
}

func (a *App) callErr(ctx context.Context, fn func() error) error {
	var fnErr error
	if err := a.loop.Call(ctx, func() { fnErr = fn() }); err != nil {
		return err
	}
	return fnErr
}
