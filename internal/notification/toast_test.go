package notification

import (
	"context"
	"testing"
	"time"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToasts_IDsIncrementFromOne(t *testing.T) {
	l, _ := startLoop(t)
	toasts := NewToasts(l, newMetrics())

	on(t, l, func() {
		assert.Equal(t, 1, toasts.Info("a", 0))
		assert.Equal(t, 2, toasts.Success("b", 0))
		assert.Equal(t, 3, toasts.Warning("c", 0))
		assert.Equal(t, 4, toasts.Error("d", 0))

		got := toasts.Toasts()
		require.Len(t, got, 4)
		assert.Equal(t, domain.SeverityWarning, got[2].Severity)
		assert.Equal(t, DefaultToastTTL, got[0].TTL)
	})
}

func TestToasts_ExpireAfterTTL(t *testing.T) {
	l, clock := startLoop(t)
	toasts := NewToasts(l, newMetrics())
	ctx := context.Background()

	on(t, l, func() {
		toasts.Warning("Your session has expired. Please login again.", 8*time.Second)
		toasts.Info("short", 0)
	})

	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	clock.Advance(5 * time.Second)
	assert.Eventually(t, func() bool {
		var n int
		_ = l.Call(ctx, func() { n = len(toasts.Toasts()) })
		return n == 1
	}, time.Second, time.Millisecond)

	clock.Advance(3 * time.Second)
	assert.Eventually(t, func() bool {
		var n int
		_ = l.Call(ctx, func() { n = len(toasts.Toasts()) })
		return n == 0
	}, time.Second, time.Millisecond)
}

func TestToasts_PersistentStays(t *testing.T) {
	l, clock := startLoop(t)
	toasts := NewToasts(l, newMetrics())

	var id int
	on(t, l, func() { id = toasts.Error("Connection lost", Persistent) })
	clock.Advance(time.Hour)
	on(t, l, func() {
		assert.Len(t, toasts.Toasts(), 1)
		assert.True(t, toasts.RemoveToast(id))
		assert.False(t, toasts.RemoveToast(id))
	})
}

func TestToasts_RemoveCancelsTimer(t *testing.T) {
	l, clock := startLoop(t)
	toasts := NewToasts(l, newMetrics())

	on(t, l, func() {
		id := toasts.Info("a", 0)
		toasts.RemoveToast(id)
		toasts.Info("b", 0)
		toasts.ClearToasts()
		assert.Empty(t, toasts.Toasts())
		assert.Empty(t, toasts.timers)
	})
	clock.Advance(time.Minute)
	on(t, l, func() { assert.Empty(t, toasts.Toasts()) })
}

func TestToasts_Subscribe(t *testing.T) {
	l, _ := startLoop(t)
	toasts := NewToasts(l, newMetrics())

	var seen []domain.Toast
	toasts.Subscribe(func(tt domain.Toast) { seen = append(seen, tt) })
	on(t, l, func() {
		toasts.Error("boom", 0)
		require.Len(t, seen, 1)
		assert.Equal(t, "boom", seen[0].Message)
	})
}
