package notification

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/loop"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*loop.Loop, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	l := loop.New(clock)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l, clock
}

func on(t *testing.T, l *loop.Loop, fn func()) {
	t.Helper()
	require.NoError(t, l.Call(context.Background(), fn))
}

func newMetrics() *metrics.NotificationMetrics {
	return metrics.NewNotificationMetrics(prometheus.NewRegistry())
}
