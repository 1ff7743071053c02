// Package session owns the authentication credential and user identity.
// It is the only place that declares the session invalid.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
)

// ReasonRestored marks the opened event emitted by Restore.
const ReasonRestored = "restored"

// Prober checks the credential against the server. Implementations must not
// trigger the gateway's unauthorized hook; the manager decides itself.
type Prober interface {
	ValidateCredential(ctx context.Context) (*domain.Identity, error)
}

// Manager mutates the session only on the loop. Reads go through an atomic
// snapshot and are safe from any goroutine.
type Manager struct {
	loop    *loop.Loop
	store   domain.CredentialStore
	prober  Prober
	metrics *metrics.SessionMetrics

	snap atomic.Pointer[domain.Snapshot]

	mu          sync.Mutex
	subscribers []func(domain.SessionEvent)
}

func NewManager(l *loop.Loop, store domain.CredentialStore, prober Prober, m *metrics.SessionMetrics) *Manager {
	mgr := &Manager{loop: l, store: store, prober: prober, metrics: m}
	mgr.snap.Store(&domain.Snapshot{})
	return mgr
}

// Subscribe registers fn for session events. Events are delivered on the
// loop, inside the task that caused them.
func (m *Manager) Subscribe(fn func(domain.SessionEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) Snapshot() domain.Snapshot { return *m.snap.Load() }
func (m *Manager) Credential() string        { return m.snap.Load().Credential }
func (m *Manager) Identity() *domain.Identity {
	return m.snap.Load().Identity
}
func (m *Manager) Authenticated() bool { return m.snap.Load().Authenticated() }

// Restore loads the persisted session. The credential is not validated here.
func (m *Manager) Restore(ctx context.Context) error {
	credential, raw, err := m.store.Load(ctx)
	if errors.Is(err, domain.ErrStoreNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if credential == "" {
		return nil
	}

	var identity *domain.Identity
	if len(raw) > 0 {
		identity = &domain.Identity{}
		if err := json.Unmarshal(raw, identity); err != nil {
			slog.WarnContext(ctx, "Stored identity unreadable, keeping credential only", "error", err)
			identity = nil
		}
	}

	m.snap.Store(&domain.Snapshot{Credential: credential, Identity: identity})
	slog.InfoContext(ctx, "Session restored", "user_id", userID(identity))
	m.emit(domain.SessionEvent{Kind: domain.SessionOpened, Reason: ReasonRestored})
	return nil
}

// Establish sets and persists a new session. A persistence failure is
// returned but the in-memory session stays established.
func (m *Manager) Establish(ctx context.Context, credential string, identity *domain.Identity) error {
	if credential == "" {
		return domain.ErrNoCredential
	}

	m.snap.Store(&domain.Snapshot{Credential: credential, Identity: identity})
	slog.InfoContext(ctx, "Session established", "user_id", userID(identity))

	var persistErr error
	raw, err := json.Marshal(identity)
	if err != nil {
		persistErr = fmt.Errorf("failed to encode identity: %w", err)
	} else if err := m.store.Save(ctx, credential, raw); err != nil {
		persistErr = fmt.Errorf("failed to persist session: %w", err)
	}

	m.emit(domain.SessionEvent{Kind: domain.SessionOpened})
	return persistErr
}

// Invalidate clears the session. It returns true only for the call that
// actually ended an authenticated session.
func (m *Manager) Invalidate(ctx context.Context, reason string) bool {
	current := m.snap.Load()
	if !current.Authenticated() {
		return false
	}

	m.snap.Store(&domain.Snapshot{})
	if err := m.store.Clear(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to clear persisted session", "error", err)
	}

	m.metrics.Invalidations.WithLabelValues(reason).Inc()
	slog.WarnContext(ctx, "Session invalidated", "reason", reason, "user_id", userID(current.Identity))
	m.emit(domain.SessionEvent{Kind: domain.SessionClosed, Reason: reason})
	return true
}

// Validate probes the credential off the loop and reports back on it.
// An explicit unauthorized answer invalidates the session. Any other failure
// counts as valid.
func (m *Manager) Validate(ctx context.Context, done func(valid bool)) {
	probed := m.Credential()
	if probed == "" {
		done(false)
		return
	}

	go func() {
		identity, err := m.prober.ValidateCredential(ctx)
		m.loop.Post(func() { m.finishValidation(ctx, probed, identity, err, done) })
	}()
}

func (m *Manager) finishValidation(ctx context.Context, probed string, identity *domain.Identity, err error, done func(bool)) {
	current := m.snap.Load()
	if current.Credential != probed {
		// session changed while the probe was in flight
		done(current.Authenticated())
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		m.metrics.Validations.WithLabelValues("invalid").Inc()
		m.Invalidate(ctx, domain.ReasonValidationFailed)
		done(false)
	case err != nil:
		m.metrics.Validations.WithLabelValues("inconclusive").Inc()
		slog.WarnContext(ctx, "Credential validation inconclusive, assuming valid", "error", err)
		done(true)
	default:
		m.metrics.Validations.WithLabelValues("valid").Inc()
		if identity != nil {
			m.snap.Store(&domain.Snapshot{Credential: probed, Identity: mergeIdentity(current.Identity, identity)})
		}
		done(true)
	}
}

func (m *Manager) emit(ev domain.SessionEvent) {
	m.mu.Lock()
	subs := make([]func(domain.SessionEvent), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// mergeIdentity lets the profile answer fill in fields the login response lacks.
func mergeIdentity(old, fresh *domain.Identity) *domain.Identity {
	if old == nil {
		return fresh
	}
	merged := *old
	if fresh.ID != 0 {
		merged.ID = fresh.ID
	}
	if fresh.Name != "" {
		merged.Name = fresh.Name
	}
	if fresh.Email != "" {
		merged.Email = fresh.Email
	}
	if fresh.Role != "" {
		merged.Role = fresh.Role
	}
	if fresh.UnitID != nil {
		merged.UnitID = fresh.UnitID
	}
	return &merged
}

func userID(identity *domain.Identity) int {
	if identity == nil {
		return 0
	}
	return identity.ID
}
