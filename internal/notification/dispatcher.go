// Package notification turns inbound connection messages into notification
// records, alerts, toasts and cache refreshes.
package notification

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
)

const alertTimeout = 10 * time.Second

type Config struct {
	LogCapacity int
	// AlertsPerMinute limits passive alerts. Zero disables alerts.
	AlertsPerMinute float64
}

// Dispatcher must be used on the loop.
type Dispatcher struct {
	session domain.Invalidator
	cache   domain.LeaveRequestCache
	alerter domain.Alerter
	limiter *rate.Limiter
	clock   clockwork.Clock
	metrics *metrics.NotificationMetrics

	log    *Log
	toasts *Toasts

	users      []domain.ConnectedUser
	usersKnown bool

	mu          sync.Mutex
	subscribers []func(domain.NotificationRecord)
}

// NewDispatcher wires the dispatcher. cache and alerter may be nil.
func NewDispatcher(session domain.Invalidator, cache domain.LeaveRequestCache, alerter domain.Alerter, toasts *Toasts, clock clockwork.Clock, m *metrics.NotificationMetrics, cfg Config) *Dispatcher {
	d := &Dispatcher{
		session: session,
		cache:   cache,
		alerter: alerter,
		clock:   clock,
		metrics: m,
		log:     NewLog(cfg.LogCapacity),
		toasts:  toasts,
	}
	if alerter != nil && cfg.AlertsPerMinute > 0 {
		burst := max(1, int(cfg.AlertsPerMinute))
		d.limiter = rate.NewLimiter(rate.Limit(cfg.AlertsPerMinute/60), burst)
	}
	return d
}

// Subscribe registers fn for every new notification record.
func (d *Dispatcher) Subscribe(fn func(domain.NotificationRecord)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, fn)
}

func (d *Dispatcher) Handle(ctx context.Context, msg domain.Message) {
	switch msg.Type {
	case domain.MessageConnectionEstablished:
		slog.InfoContext(ctx, "Connection established", "message", msg.Message)
	case domain.MessagePong:
	case domain.MessageConnectedUsers:
		d.users = slices.Clone(msg.Users)
		d.usersKnown = true
		slog.InfoContext(ctx, "Connected users", "count", len(msg.Users))
	case domain.MessageNotification, domain.MessageManagerNotification:
		d.addNotification(ctx, msg)
	case domain.MessageError:
		slog.WarnContext(ctx, "Server reported error", "message", msg.Message)
		if IsAuthenticationError(msg.Message) {
			d.session.Invalidate(ctx, domain.ReasonConnectionReportedAuthErr)
		}
	default:
		slog.DebugContext(ctx, "Unknown message type", "type", msg.Type)
	}
}

func (d *Dispatcher) addNotification(ctx context.Context, msg domain.Message) {
	category := msg.NotificationType
	if category == "" {
		category = string(msg.Type)
	}
	audience := domain.AudienceUser
	if msg.Type == domain.MessageManagerNotification {
		audience = domain.AudienceManager
	}

	record := domain.NotificationRecord{
		ID:        uuid.New(),
		Category:  category,
		Audience:  audience,
		Payload:   msg.Data,
		CreatedAt: d.timestamp(msg.Timestamp),
		Message:   Render(msg),
	}
	d.log.Add(record)
	d.metrics.Received.WithLabelValues(string(audience)).Inc()
	d.syncUnread()
	slog.InfoContext(ctx, "Notification received", "category", category, "audience", audience)

	d.mu.Lock()
	subs := slices.Clone(d.subscribers)
	d.mu.Unlock()
	for _, fn := range subs {
		fn(record)
	}

	d.alert(ctx, record.Message, AlertBody(msg.Data))

	if d.cache == nil {
		return
	}
	switch msg.NotificationType {
	case domain.NotificationNewLeaveRequest:
		d.cache.Refresh()
		if msg.Data != nil && msg.Data.LeaveRequestID != 0 {
			d.cache.Highlight(msg.Data.LeaveRequestID)
		}
	case domain.NotificationLeaveRequestStatus:
		d.cache.Refresh()
	}
}

// alert sends the passive system alert off the loop.
func (d *Dispatcher) alert(ctx context.Context, title, body string) {
	if d.alerter == nil || d.limiter == nil {
		return
	}
	if !d.limiter.AllowN(d.clock.Now(), 1) {
		d.metrics.Alerts.WithLabelValues("throttled").Inc()
		slog.DebugContext(ctx, "Alert throttled", "title", title)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()
		if err := d.alerter.Alert(ctx, title, body); err != nil {
			d.metrics.Alerts.WithLabelValues("failed").Inc()
			slog.WarnContext(ctx, "Failed to send alert", "error", err)
			return
		}
		d.metrics.Alerts.WithLabelValues("sent").Inc()
	}()
}

func (d *Dispatcher) timestamp(raw string) time.Time {
	if raw != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return d.clock.Now()
}

func (d *Dispatcher) syncUnread() {
	d.metrics.Unread.Set(float64(d.log.UnreadCount()))
}

func (d *Dispatcher) Notifications() []domain.NotificationRecord { return d.log.Notifications() }
func (d *Dispatcher) UnreadCount() int                           { return d.log.UnreadCount() }
func (d *Dispatcher) HasNotifications() bool                     { return d.log.HasNotifications() }

func (d *Dispatcher) MarkAsRead(id uuid.UUID) error {
	err := d.log.MarkAsRead(id)
	d.syncUnread()
	return err
}

func (d *Dispatcher) MarkAllAsRead() {
	d.log.MarkAllAsRead()
	d.syncUnread()
}

func (d *Dispatcher) Remove(id uuid.UUID) error {
	err := d.log.Remove(id)
	d.syncUnread()
	return err
}

func (d *Dispatcher) Clear() {
	d.log.Clear()
	d.syncUnread()
}

// ConnectedUsers returns the latest list the server sent, and whether one
// has arrived at all.
func (d *Dispatcher) ConnectedUsers() ([]domain.ConnectedUser, bool) {
	return slices.Clone(d.users), d.usersKnown
}

// Reset drops everything tied to the ended session.
func (d *Dispatcher) Reset() {
	d.Clear()
	d.users = nil
	d.usersKnown = false
}

func (d *Dispatcher) Toasts() *Toasts { return d.toasts }
