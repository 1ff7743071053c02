// Package leaverequests caches the leave request list that push
// notifications invalidate.
package leaverequests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
)

const (
	DefaultHighlightTTL = 5 * time.Second
	refreshTimeout      = 15 * time.Second
	flightKey           = "leave_requests"
)

// Cache state is owned by the loop. Fetch is the only method safe off the loop.
type Cache struct {
	loop         *loop.Loop
	source       domain.LeaveRequestSource
	breaker      circuitbreaker.CircuitBreaker[any]
	group        singleflight.Group
	metrics      *metrics.CacheMetrics
	highlightTTL time.Duration

	// gen changes on Reset; results fetched for an older gen are dropped.
	gen atomic.Uint64

	requests   []domain.LeaveRequest
	loadedAt   time.Time
	lastErr    error
	loading    bool
	dirty      bool
	highlights map[int]*loop.Timer
}

func NewCache(l *loop.Loop, source domain.LeaveRequestSource, m *metrics.CacheMetrics) *Cache {
	c := &Cache{
		loop:         l,
		source:       source,
		metrics:      m,
		highlightTTL: DefaultHighlightTTL,
		highlights:   make(map[int]*loop.Timer),
	}
	c.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(3).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "leave_requests",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			m.BreakerTransitions.WithLabelValues(e.NewState.String()).Inc()
		}).
		Build()
	return c
}

// Fetch loads the list from the backend. Concurrent calls share one request
// and the circuit breaker rejects calls while the backend keeps failing.
func (c *Cache) Fetch(ctx context.Context) ([]domain.LeaveRequest, error) {
	return c.fetch(ctx, c.gen.Load())
}

// fetch shares in-flight requests only within one generation, so a fetch
// started for an ended session never answers the next one.
func (c *Cache) fetch(ctx context.Context, gen uint64) ([]domain.LeaveRequest, error) {
	key := flightKey + ":" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if !c.breaker.TryAcquirePermit() {
			c.metrics.Refreshes.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("leave request refresh: %w", circuitbreaker.ErrOpen)
		}
		reqs, err := c.source.LeaveRequests(ctx)
		switch {
		case err == nil:
			c.breaker.RecordSuccess()
		case errors.Is(err, domain.ErrUnauthorized):
			// the backend answered; the session handles this
			c.breaker.RecordSuccess()
		default:
			c.breaker.RecordError(err)
		}
		if err != nil {
			c.metrics.Refreshes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to fetch leave requests: %w", err)
		}
		c.metrics.Refreshes.WithLabelValues("ok").Inc()
		return reqs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.LeaveRequest), nil
}

// Refresh reloads the list in the background. Calls while a refresh is in
// flight mark the list dirty and trigger exactly one more fetch once it lands.
func (c *Cache) Refresh() {
	if c.loading {
		c.dirty = true
		return
	}
	c.loading = true
	c.dirty = false
	gen := c.gen.Load()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		reqs, err := c.fetch(ctx, gen)
		c.loop.Post(func() { c.finish(gen, reqs, err) })
	}()
}

func (c *Cache) finish(gen uint64, reqs []domain.LeaveRequest, err error) {
	if gen != c.gen.Load() {
		slog.Debug("Dropping leave requests fetched before reset")
		return
	}
	c.loading = false
	c.apply(reqs, err)
	if c.dirty {
		c.Refresh()
	}
}

func (c *Cache) apply(reqs []domain.LeaveRequest, err error) {
	if err != nil {
		c.lastErr = err
		slog.Warn("Leave request refresh failed", "error", err)
		return
	}
	c.requests = reqs
	c.loadedAt = c.loop.Clock().Now()
	c.lastErr = nil
	c.metrics.Entries.Set(float64(len(reqs)))
}

// Highlight marks a request for a few seconds. Highlighting again restarts
// the timer.
func (c *Cache) Highlight(requestID int) {
	if t, ok := c.highlights[requestID]; ok {
		t.Stop()
	}
	c.highlights[requestID] = c.loop.AfterFunc(c.highlightTTL, func() {
		delete(c.highlights, requestID)
	})
}

func (c *Cache) IsHighlighted(requestID int) bool {
	_, ok := c.highlights[requestID]
	return ok
}

func (c *Cache) Highlighted() []int {
	ids := make([]int, 0, len(c.highlights))
	for id := range c.highlights {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Cache) ClearHighlights() {
	for id, t := range c.highlights {
		t.Stop()
		delete(c.highlights, id)
	}
}

// Reset forgets the list and all highlights.
func (c *Cache) Reset() {
	c.gen.Add(1)
	c.loading = false
	c.dirty = false
	c.ClearHighlights()
	c.requests = nil
	c.loadedAt = time.Time{}
	c.lastErr = nil
	c.metrics.Entries.Set(0)
}

func (c *Cache) Requests() []domain.LeaveRequest { return slices.Clone(c.requests) }

func (c *Cache) Pending() []domain.LeaveRequest  { return c.byStatus(domain.StatusPending) }
func (c *Cache) Approved() []domain.LeaveRequest { return c.byStatus(domain.StatusApproved) }
func (c *Cache) Rejected() []domain.LeaveRequest { return c.byStatus(domain.StatusRejected) }

func (c *Cache) byStatus(s domain.LeaveRequestStatus) []domain.LeaveRequest {
	var out []domain.LeaveRequest
	for _, r := range c.requests {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}

// Status describes the cache for the status API.
type Status struct {
	Count       int       `json:"count"`
	LoadedAt    time.Time `json:"loaded_at,omitzero"`
	Loading     bool      `json:"loading"`
	LastError   string    `json:"last_error,omitempty"`
	Highlighted []int     `json:"highlighted"`
	Breaker     string    `json:"breaker"`
}

func (c *Cache) Status() Status {
	st := Status{
		Count:       len(c.requests),
		LoadedAt:    c.loadedAt,
		Loading:     c.loading,
		Highlighted: c.Highlighted(),
		Breaker:     breakerState(c.breaker),
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

func breakerState(cb circuitbreaker.CircuitBreaker[any]) string {
	switch {
	case cb.IsOpen():
		return "open"
	case cb.IsHalfOpen():
		return "half-open"
	default:
		return "closed"
	}
}
