package notification

import (
	"slices"
	"sync"
	"time"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
)

const (
	DefaultToastTTL = 5 * time.Second
	// Persistent toasts stay until removed.
	Persistent time.Duration = -1
)

// Toasts holds transient user messages. Must be used on the loop.
type Toasts struct {
	loop    *loop.Loop
	metrics *metrics.NotificationMetrics

	nextID int
	items  []domain.Toast
	timers map[int]*loop.Timer

	mu          sync.Mutex
	subscribers []func(domain.Toast)
}

func NewToasts(l *loop.Loop, m *metrics.NotificationMetrics) *Toasts {
	return &Toasts{loop: l, metrics: m, nextID: 1, timers: make(map[int]*loop.Timer)}
}

// Subscribe registers fn for every new toast.
func (t *Toasts) Subscribe(fn func(domain.Toast)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// AddToast shows a toast and returns its id. A zero ttl means the default,
// Persistent disables expiry.
func (t *Toasts) AddToast(message string, severity domain.Severity, ttl time.Duration) int {
	if ttl == 0 {
		ttl = DefaultToastTTL
	}
	id := t.nextID
	t.nextID++

	toast := domain.Toast{ID: id, Message: message, Severity: severity, TTL: ttl}
	t.items = append(t.items, toast)
	if ttl > 0 {
		t.timers[id] = t.loop.AfterFunc(ttl, func() { t.RemoveToast(id) })
	}
	t.metrics.Toasts.WithLabelValues(string(severity)).Inc()

	t.mu.Lock()
	subs := slices.Clone(t.subscribers)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(toast)
	}
	return id
}

func (t *Toasts) Success(message string, ttl time.Duration) int {
	return t.AddToast(message, domain.SeveritySuccess, ttl)
}

func (t *Toasts) Info(message string, ttl time.Duration) int {
	return t.AddToast(message, domain.SeverityInfo, ttl)
}

func (t *Toasts) Warning(message string, ttl time.Duration) int {
	return t.AddToast(message, domain.SeverityWarning, ttl)
}

func (t *Toasts) Error(message string, ttl time.Duration) int {
	return t.AddToast(message, domain.SeverityError, ttl)
}

// RemoveToast reports whether the toast was still shown.
func (t *Toasts) RemoveToast(id int) bool {
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
	i := slices.IndexFunc(t.items, func(x domain.Toast) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	t.items = slices.Delete(t.items, i, i+1)
	return true
}

func (t *Toasts) ClearToasts() {
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	t.items = nil
}

// Toasts returns the visible toasts, oldest first.
func (t *Toasts) Toasts() []domain.Toast {
	return slices.Clone(t.items)
}
