package app

import (
	"context"
	"log/slog"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/notification"
)

// onUnauthorized runs on the gateway's goroutine. The invalidation and its
// side effects happen in one loop task.
func (a *App) onUnauthorized(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	a.loop.Post(func() {
		a.session.Invalidate(ctx, domain.ReasonRequestUnauthorized)
	})
}

func (a *App) onSessionEvent(ev domain.SessionEvent) {
	ctx := context.Background()
	switch ev.Kind {
	case domain.SessionOpened:
		a.onSessionOpened(ctx)
	case domain.SessionClosed:
		a.onSessionClosed(ctx, ev.Reason)
	}
}

func (a *App) onSessionOpened(ctx context.Context) {
	a.redirect.Stop()
	if a.cfg.Passive {
		return
	}
	credential := a.session.Credential()
	if a.connectedWith != "" && a.connectedWith != credential {
		slog.Info("Credential changed, reconnecting")
		a.conn.Disconnect(ctx)
	}
	a.connectedWith = credential
	a.conn.Connect(ctx)
	a.cache.Refresh()
}

func (a *App) onSessionClosed(ctx context.Context, reason string) {
	a.connectedWith = ""
	a.conn.Disconnect(ctx)
	a.dispatcher.Reset()
	a.cache.Reset()
	a.clearExhaustedToast()

	if reason == domain.ReasonLogout {
		return
	}
	a.toasts.Warning(msgSessionExpired, sessionExpiredTTL)
	a.scheduleRedirect()
}

func (a *App) scheduleRedirect() {
	if a.navigator == nil {
		return
	}
	a.redirect.Stop()
	a.redirect = a.loop.AfterFunc(a.cfg.RedirectDelay, func() {
		a.redirect = nil
		if a.navigator.CurrentPath() != homePath {
			a.navigator.Navigate(homePath)
		}
	})
}

func (a *App) onConnectionStatus(st domain.ConnectionStatus) {
	switch st.State {
	case domain.StateExhausted:
		if a.exhaustedToast == 0 {
			a.exhaustedToast = a.toasts.Error(msgExhausted, notification.Persistent)
		}
	case domain.StateOpen:
		a.clearExhaustedToast()
	}
}

func (a *App) clearExhaustedToast() {
	if a.exhaustedToast != 0 {
		a.toasts.RemoveToast(a.exhaustedToast)
		a.exhaustedToast = 0
	}
}
