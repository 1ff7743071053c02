package leaverequests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu      sync.Mutex
	reqs    []domain.LeaveRequest
	err     error
	calls   atomic.Int32
	release chan struct{}
}

func (s *stubSource) LeaveRequests(ctx context.Context) ([]domain.LeaveRequest, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs, s.err
}

func (s *stubSource) set(reqs []domain.LeaveRequest, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs, s.err = reqs, err
}

func newCache(t *testing.T, src *stubSource) (*Cache, *loop.Loop, *clockwork.FakeClock, *metrics.CacheMetrics) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	l := loop.New(clock)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	m := metrics.NewCacheMetrics(prometheus.NewRegistry())
	return NewCache(l, src, m), l, clock, m
}

func on(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	require.NoError(t, l.Call(context.Background(), fn))
}

var sample = []domain.LeaveRequest{
	{ID: 1, Status: domain.StatusPending},
	{ID: 2, Status: domain.StatusApproved},
	{ID: 3, Status: domain.StatusRejected},
	{ID: 4, Status: domain.StatusPending},
}

func TestRefresh_LoadsAndFilters(t *testing.T) {
	src := &stubSource{reqs: sample}
	c, l, _, m := newCache(t, src)

	on(t, l, c.Refresh)
	require.Eventually(t, func() bool {
		var n int
		_ = l.Call(context.Background(), func() { n = len(c.Requests()) })
		return n == 4
	}, time.Second, time.Millisecond)

	on(t, l, func() {
		assert.Len(t, c.Pending(), 2)
		assert.Len(t, c.Approved(), 1)
		assert.Len(t, c.Rejected(), 1)
		st := c.Status()
		assert.Equal(t, 4, st.Count)
		assert.False(t, st.Loading)
		assert.Equal(t, "closed", st.Breaker)
	})
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Entries))
}

func cachedCount(t *testing.T, l *loop.Loop, c *Cache) int {
	t.Helper()
	var n int
	_ = l.Call(context.Background(), func() { n = len(c.Requests()) })
	return n
}

func TestRefresh_SignalDuringLoadFetchesAgain(t *testing.T) {
	src := &stubSource{reqs: sample[:1], release: make(chan struct{})}
	c, l, _, _ := newCache(t, src)

	on(t, l, c.Refresh)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	// first fetch has read the old list; the server changes, a second signal arrives
	on(t, l, func() {
		c.Refresh()
		c.Refresh()
		assert.True(t, c.Status().Loading)
	})
	src.set(sample, nil)
	close(src.release)

	require.Eventually(t, func() bool { return cachedCount(t, l, c) == 4 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		var loading bool
		_ = l.Call(context.Background(), func() { loading = c.Status().Loading })
		return !loading
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRefresh_LateResultAfterResetIsDropped(t *testing.T) {
	src := &stubSource{reqs: sample, release: make(chan struct{})}
	c, l, _, m := newCache(t, src)

	on(t, l, c.Refresh)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	on(t, l, func() {
		c.Reset()
		assert.False(t, c.Status().Loading)
	})
	close(src.release)

	// give the stale result time to reach the loop
	time.Sleep(20 * time.Millisecond)
	on(t, l, func() {})

	assert.Equal(t, 0, cachedCount(t, l, c))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Entries))
}

func TestRefresh_AfterResetDoesNotJoinStaleFetch(t *testing.T) {
	src := &stubSource{reqs: sample, release: make(chan struct{})}
	c, l, _, _ := newCache(t, src)

	on(t, l, c.Refresh)
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)

	on(t, l, func() {
		c.Reset()
		c.Refresh()
	})
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(src.release)

	require.Eventually(t, func() bool { return cachedCount(t, l, c) == 4 }, time.Second, time.Millisecond)
}

func TestFetch_SharesInFlightRequest(t *testing.T) {
	src := &stubSource{reqs: sample, release: make(chan struct{})}
	c, _, _, _ := newCache(t, src)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqs, err := c.Fetch(context.Background())
			assert.NoError(t, err)
			assert.Len(t, reqs, 4)
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefresh_ErrorKeepsPreviousList(t *testing.T) {
	src := &stubSource{reqs: sample}
	c, l, _, _ := newCache(t, src)
	ctx := context.Background()

	reqs, err := c.Fetch(ctx)
	require.NoError(t, err)
	on(t, l, func() { c.apply(reqs, nil) })

	src.set(nil, errors.New("connection refused"))
	on(t, l, c.Refresh)
	require.Eventually(t, func() bool {
		var st Status
		_ = l.Call(ctx, func() { st = c.Status() })
		return st.LastError != ""
	}, time.Second, time.Millisecond)

	on(t, l, func() { assert.Len(t, c.Requests(), 4) })
}

func TestFetch_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	src := &stubSource{err: errors.New("502 bad gateway")}
	c, _, _, m := newCache(t, src)
	ctx := context.Background()

	for range 3 {
		_, err := c.Fetch(ctx)
		require.Error(t, err)
	}
	_, err := c.Fetch(ctx)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("open")))
}

func TestFetch_UnauthorizedDoesNotTripBreaker(t *testing.T) {
	src := &stubSource{err: domain.ErrUnauthorized}
	c, _, _, _ := newCache(t, src)

	for range 5 {
		_, err := c.Fetch(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	}
	assert.Equal(t, int32(5), src.calls.Load())
}

func TestHighlight_ExpiresAfterFiveSeconds(t *testing.T) {
	c, l, clock, _ := newCache(t, &stubSource{})
	ctx := context.Background()

	on(t, l, func() {
		c.Highlight(7)
		assert.True(t, c.IsHighlighted(7))
		assert.False(t, c.IsHighlighted(8))
	})

	clock.Advance(4 * time.Second)
	on(t, l, func() { assert.True(t, c.IsHighlighted(7)) })

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool {
		var h bool
		_ = l.Call(ctx, func() { h = c.IsHighlighted(7) })
		return !h
	}, time.Second, time.Millisecond)
}

func TestHighlight_RestartAndClear(t *testing.T) {
	c, l, clock, _ := newCache(t, &stubSource{})

	on(t, l, func() { c.Highlight(1) })
	clock.Advance(3 * time.Second)
	on(t, l, func() { c.Highlight(1) })
	clock.Advance(3 * time.Second)
	on(t, l, func() {
		assert.True(t, c.IsHighlighted(1))
		c.Highlight(2)
		assert.Equal(t, []int{1, 2}, c.Highlighted())
		c.ClearHighlights()
		assert.Empty(t, c.Highlighted())
	})

	clock.Advance(time.Minute)
	on(t, l, func() { assert.Empty(t, c.Highlighted()) })
}

func TestReset(t *testing.T) {
	c, l, _, _ := newCache(t, &stubSource{})
	on(t, l, func() {
		c.apply(sample, nil)
		c.Highlight(1)
		c.Reset()
		assert.Empty(t, c.Requests())
		assert.False(t, c.IsHighlighted(1))
	})
}
