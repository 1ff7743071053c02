package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/connection"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/gateway"
	"github.com/pscheid92/leavenotify/internal/leaverequests"
	"github.com/pscheid92/leavenotify/internal/loop"
	"github.com/pscheid92/leavenotify/internal/notification"
	"github.com/pscheid92/leavenotify/internal/session"
)

const (
	defaultRedirectDelay = 100 * time.Millisecond
	sessionExpiredTTL    = 8 * time.Second
	homePath             = "/"

	msgSessionExpired = "Your session has expired. Please login again."
	msgExhausted      = "Lost connection to live notifications. Reconnect to try again."
)

type Config struct {
	BackendURL     string
	WebSocketURL   string
	RequestTimeout time.Duration
	Connection     connection.Config
	Notification   notification.Config
	// RedirectDelay lets the expiry toast show before navigating home.
	RedirectDelay time.Duration
	// Passive one-shot commands manage the session without opening the
	// notification connection.
	Passive bool
}

// Deps are the adapters the app runs against. Only Store is required.
type Deps struct {
	Clock      clockwork.Clock
	Store      domain.CredentialStore
	Alerter    domain.Alerter
	Navigator  domain.Navigator
	Dialer     connection.Dialer
	HTTPClient *http.Client
	Registry   prometheus.Registerer
}

// App is the only component that references several peers. It reacts to
// session and connection events and exposes use cases to the CLI and the
// status API. Exported methods are safe from any goroutine.
type App struct {
	cfg       Config
	loop      *loop.Loop
	navigator domain.Navigator

	session    *session.Manager
	gateway    *gateway.Client
	conn       *connection.Manager
	dispatcher *notification.Dispatcher
	toasts     *notification.Toasts
	cache      *leaverequests.Cache

	// loop-owned
	connectedWith  string
	redirect       *loop.Timer
	exhaustedToast int

	stop context.CancelFunc
}

func New(cfg Config, deps Deps) (*App, error) {
	if deps.Store == nil {
		return nil, errors.New("credential store is required")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if cfg.RedirectDelay <= 0 {
		cfg.RedirectDelay = defaultRedirectDelay
	}

	a := &App{cfg: cfg, navigator: deps.Navigator, loop: loop.New(deps.Clock)}

	opts := []gateway.Option{gateway.WithUnauthorizedHook(a.onUnauthorized)}
	if deps.HTTPClient != nil {
		opts = append(opts, gateway.WithHTTPClient(deps.HTTPClient))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, gateway.WithTimeout(cfg.RequestTimeout))
	}
	gw, err := gateway.NewClient(cfg.BackendURL, gateway.CredentialFunc(func() string { return a.session.Credential() }), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	a.gateway = gw

	notificationMetrics := metrics.NewNotificationMetrics(deps.Registry)
	a.session = session.NewManager(a.loop, deps.Store, gw, metrics.NewSessionMetrics(deps.Registry))
	a.cache = leaverequests.NewCache(a.loop, gw, metrics.NewCacheMetrics(deps.Registry))
	a.toasts = notification.NewToasts(a.loop, notificationMetrics)
	a.dispatcher = notification.NewDispatcher(a.session, a.cache, deps.Alerter, a.toasts, deps.Clock, notificationMetrics, cfg.Notification)

	connCfg := cfg.Connection
	if connCfg.URL == "" {
		connCfg.URL = cfg.WebSocketURL
	}
	a.conn = connection.NewManager(a.loop, a.session, a.dispatcher, deps.Dialer, metrics.NewConnectionMetrics(deps.Registry), connCfg)

	a.session.Subscribe(a.onSessionEvent)
	a.conn.OnStatus(a.onConnectionStatus)
	return a, nil
}

// Start runs the event loop until Shutdown.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	go a.loop.Run(ctx)
}

// Restore loads the persisted session. An authenticated restore opens the
// notification connection.
func (a *App) Restore(ctx context.Context) error {
	var restoreErr error
	if err := a.loop.Call(ctx, func() { restoreErr = a.session.Restore(ctx) }); err != nil {
		return err
	}
	return restoreErr
}

// Shutdown closes the connection normally and stops the loop.
func (a *App) Shutdown(ctx context.Context) error {
	if a.stop == nil {
		return nil
	}
	err := a.loop.Call(ctx, func() {
		a.redirect.Stop()
		a.conn.Disconnect(ctx)
	})
	a.stop()
	<-a.loop.Done()
	if err != nil && !errors.Is(err, loop.ErrStopped) {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	slog.Info("Shutdown complete")
	return nil
}

func (a *App) Gateway() *gateway.Client { return a.gateway }

// Session exposes the read-only session view.
func (a *App) Session() domain.Snapshot { return a.session.Snapshot() }

// SubscribeNotifications registers fn for every new notification record. fn runs on the loop.
func (a *App) SubscribeNotifications(fn func(domain.NotificationRecord)) {
	a.dispatcher.Subscribe(fn)
}

// SubscribeToasts registers fn for every new toast. fn runs on the loop.
func (a *App) SubscribeToasts(fn func(domain.Toast)) {
	a.toasts.Subscribe(fn)
}

// SubscribeConnection registers fn for connection state changes. fn runs on the loop.
func (a *App) SubscribeConnection(fn func(domain.ConnectionStatus)) {
	a.conn.OnStatus(fn)
}
