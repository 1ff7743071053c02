// Package loop runs all session, connection and notification state changes
// on a single goroutine. Other goroutines (network readers, timers, HTTP
// handlers) hand work to it with Post or Call.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const queueSize = 256

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	clock clockwork.Clock
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

func New(clock clockwork.Clock) *Loop {
	return &Loop{
		clock: clock,
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

func (l *Loop) Clock() clockwork.Clock { return l.clock }

// Run executes posted work in order until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post enqueues fn. It reports false when the loop has already stopped.
// Must not be called from the loop while the queue is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish. Calling it from the
// loop goroutine deadlocks.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// fn may have completed just before shutdown
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Timer is a one-shot callback delivered through the loop. A stopped timer
// never runs its callback, even if the underlying clock already fired.
type Timer struct {
	timer     clockwork.Timer
	cancelled atomic.Bool
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.Swap(true) {
				return
			}
			fn()
		})
	})
	return t
}

// Stop reports whether the callback was still pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	t.timer.Stop()
	return !t.cancelled.Swap(true)
}

// Ticker re-arms an AfterFunc after each tick, so ticks never pile up while
// the loop is busy.
type Ticker struct {
	mu        sync.Mutex
	timer     *Timer
	cancelled atomic.Bool
}

func (l *Loop) Every(d time.Duration, fn func()) *Ticker {
	tk := &Ticker{}
	var arm func()
	arm = func() {
		tk.mu.Lock()
		defer tk.mu.Unlock()
		tk.timer = l.AfterFunc(d, func() {
			if tk.cancelled.Load() {
				return
			}
			fn()
			if !tk.cancelled.Load() {
				arm()
			}
		})
	}
	arm()
	return tk
}

func (tk *Ticker) Stop() {
	if tk == nil {
		return
	}
	tk.cancelled.Store(true)
	tk.mu.Lock()
	defer tk.mu.Unlock()
	tk.timer.Stop()
}
