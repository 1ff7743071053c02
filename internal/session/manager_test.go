package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/adapter/store/memory"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	mu       sync.Mutex
	identity *domain.Identity
	err      error
	release  chan struct{}
	calls    int
}

func (p *stubProber) ValidateCredential(ctx context.Context) (*domain.Identity, error) {
	p.mu.Lock()
	p.calls++
	release := p.release
	p.mu.Unlock()
	if release != nil {
		<-release
	}
	return p.identity, p.err
}

type failingStore struct{ memory.Store }

func (*failingStore) Save(context.Context, string, []byte) error { return errors.New("disk full") }

type fixture struct {
	loop    *loop.Loop
	store   domain.CredentialStore
	prober  *stubProber
	metrics *metrics.SessionMetrics
	mgr     *Manager
	events  []domain.SessionEvent
}

func newFixture(t *testing.T, store domain.CredentialStore) *fixture {
	t.Helper()
	l := loop.New(clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})

	f := &fixture{loop: l, store: store, prober: &stubProber{}, metrics: metrics.NewSessionMetrics(prometheus.NewRegistry())}
	f.mgr = NewManager(l, store, f.prober, f.metrics)
	f.mgr.Subscribe(func(ev domain.SessionEvent) { f.events = append(f.events, ev) })
	return f
}

// on runs fn on the loop and waits.
func (f *fixture) on(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Call(context.Background(), fn))
}

var alice = &domain.Identity{ID: 7, Name: "Alice", Email: "alice@example.com"}

func TestEstablish_PersistsAndEmits(t *testing.T) {
	f := newFixture(t, memory.New())
	ctx := context.Background()

	f.on(t, func() { require.NoError(t, f.mgr.Establish(ctx, "tok-1", alice)) })

	assert.True(t, f.mgr.Authenticated())
	assert.Equal(t, "tok-1", f.mgr.Credential())
	assert.Equal(t, "Alice", f.mgr.Identity().Name)

	cred, raw, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred)
	assert.JSONEq(t, `{"user_id":7,"name":"Alice","email":"alice@example.com"}`, string(raw))

	f.on(t, func() {
		require.Len(t, f.events, 1)
		assert.Equal(t, domain.SessionOpened, f.events[0].Kind)
	})
}

func TestEstablish_EmptyCredential(t *testing.T) {
	f := newFixture(t, memory.New())
	f.on(t, func() {
		assert.ErrorIs(t, f.mgr.Establish(context.Background(), "", alice), domain.ErrNoCredential)
		assert.Empty(t, f.events)
	})
	assert.False(t, f.mgr.Authenticated())
}

func TestEstablish_PersistFailureKeepsSession(t *testing.T) {
	f := newFixture(t, &failingStore{})
	f.on(t, func() {
		err := f.mgr.Establish(context.Background(), "tok", alice)
		assert.ErrorContains(t, err, "disk full")
	})
	assert.True(t, f.mgr.Authenticated())
}

func TestRestore(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Save(context.Background(), "tok-r", []byte(`{"user_id":3,"name":"Bob","role":"manager"}`)))
	f := newFixture(t, store)

	f.on(t, func() { require.NoError(t, f.mgr.Restore(context.Background())) })

	assert.Equal(t, "tok-r", f.mgr.Credential())
	assert.True(t, f.mgr.Identity().IsManager())
	f.on(t, func() {
		require.Len(t, f.events, 1)
		assert.Equal(t, ReasonRestored, f.events[0].Reason)
	})
}

func TestRestore_NothingStored(t *testing.T) {
	f := newFixture(t, memory.New())
	f.on(t, func() { require.NoError(t, f.mgr.Restore(context.Background())) })
	assert.False(t, f.mgr.Authenticated())
	f.on(t, func() { assert.Empty(t, f.events) })
}

func TestRestore_CorruptIdentityKeepsCredential(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Save(context.Background(), "tok", []byte(`{not json`)))
	f := newFixture(t, store)

	f.on(t, func() { require.NoError(t, f.mgr.Restore(context.Background())) })
	assert.True(t, f.mgr.Authenticated())
	assert.Nil(t, f.mgr.Identity())
}

func TestInvalidate_Idempotent(t *testing.T) {
	f := newFixture(t, memory.New())
	ctx := context.Background()

	f.on(t, func() {
		require.NoError(t, f.mgr.Establish(ctx, "tok", alice))
		assert.True(t, f.mgr.Invalidate(ctx, domain.ReasonRequestUnauthorized))
		assert.False(t, f.mgr.Invalidate(ctx, domain.ReasonRequestUnauthorized))
		assert.False(t, f.mgr.Invalidate(ctx, domain.ReasonConnectionAuthFailed))
	})

	assert.False(t, f.mgr.Authenticated())
	assert.Nil(t, f.mgr.Identity())
	_, _, err := f.store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)

	f.on(t, func() {
		require.Len(t, f.events, 2)
		assert.Equal(t, domain.SessionEvent{Kind: domain.SessionClosed, Reason: domain.ReasonRequestUnauthorized}, f.events[1])
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Invalidations.WithLabelValues(domain.ReasonRequestUnauthorized)))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Invalidations.WithLabelValues(domain.ReasonConnectionAuthFailed)))
}

func TestInvalidate_WithoutSession(t *testing.T) {
	f := newFixture(t, memory.New())
	f.on(t, func() {
		assert.False(t, f.mgr.Invalidate(context.Background(), domain.ReasonLogout))
		assert.Empty(t, f.events)
	})
}

func validate(t *testing.T, f *fixture) bool {
	t.Helper()
	result := make(chan bool, 1)
	f.on(t, func() { f.mgr.Validate(context.Background(), func(ok bool) { result <- ok }) })
	select {
	case ok := <-result:
		return ok
	case <-time.After(time.Second):
		t.Fatal("validation did not complete")
		return false
	}
}

func TestValidate_NoCredential(t *testing.T) {
	f := newFixture(t, memory.New())
	assert.False(t, validate(t, f))
	assert.Equal(t, 0, f.prober.calls)
}

func TestValidate_Valid(t *testing.T) {
	f := newFixture(t, memory.New())
	unit := 4
	f.prober.identity = &domain.Identity{ID: 7, Role: "manager", UnitID: &unit}
	f.on(t, func() { require.NoError(t, f.mgr.Establish(context.Background(), "tok", alice)) })

	assert.True(t, validate(t, f))
	id := f.mgr.Identity()
	assert.Equal(t, "Alice", id.Name)
	assert.True(t, id.IsManager())
	assert.Equal(t, 4, *id.UnitID)
}

func TestValidate_UnauthorizedInvalidates(t *testing.T) {
	f := newFixture(t, memory.New())
	f.prober.err = domain.ErrUnauthorized
	f.on(t, func() { require.NoError(t, f.mgr.Establish(context.Background(), "tok", alice)) })

	assert.False(t, validate(t, f))
	assert.False(t, f.mgr.Authenticated())
	f.on(t, func() {
		last := f.events[len(f.events)-1]
		assert.Equal(t, domain.ReasonValidationFailed, last.Reason)
	})
}

func TestValidate_NetworkErrorFailsOpen(t *testing.T) {
	f := newFixture(t, memory.New())
	f.prober.err = errors.New("connection refused")
	f.on(t, func() { require.NoError(t, f.mgr.Establish(context.Background(), "tok", alice)) })

	assert.True(t, validate(t, f))
	assert.True(t, f.mgr.Authenticated())
}

func TestValidate_StaleProbeIgnored(t *testing.T) {
	f := newFixture(t, memory.New())
	f.prober.err = domain.ErrUnauthorized
	f.prober.release = make(chan struct{})
	ctx := context.Background()
	f.on(t, func() { require.NoError(t, f.mgr.Establish(ctx, "old", alice)) })

	result := make(chan bool, 1)
	f.on(t, func() { f.mgr.Validate(ctx, func(ok bool) { result <- ok }) })
	f.on(t, func() { require.NoError(t, f.mgr.Establish(ctx, "new", alice)) })
	close(f.prober.release)

	assert.True(t, <-result)
	assert.Equal(t, "new", f.mgr.Credential())
}
