package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
)

func failing(context.Context, goredis.Cmder) error { return errors.New("connection refused") }

func succeeding(context.Context, goredis.Cmder) error { return nil }

func missing(context.Context, goredis.Cmder) error { return goredis.Nil }

func TestCircuitBreakerHook_StaysClosedOnSuccess(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerConfig{}, nil)
	process := hook.ProcessHook(succeeding)
	ctx := context.Background()

	for range 10 {
		require.NoError(t, process(ctx, goredis.NewStringCmd(ctx, "get", "k")))
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_MissingKeyIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(BreakerConfig{}, nil)
	process := hook.ProcessHook(missing)
	ctx := context.Background()

	for range 10 {
		err := process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
		assert.ErrorIs(t, err, goredis.Nil)
	}
	assert.Equal(t, circuitbreaker.ClosedState, hook.State())
}

func TestCircuitBreakerHook_OpensAndFailsFast(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRedisMetrics(reg)
	hook := NewCircuitBreakerHook(BreakerConfig{}, m)
	ctx := context.Background()

	process := hook.ProcessHook(failing)
	err := process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	for range 4 {
		if hook.State() == circuitbreaker.OpenState {
			break
		}
		_ = process(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	}
	require.Equal(t, circuitbreaker.OpenState, hook.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreakerState))

	called := false
	process = hook.ProcessHook(func(context.Context, goredis.Cmder) error {
		called = true
		return nil
	})
	cmd := goredis.NewStringCmd(ctx, "get", "k")
	err = process(ctx, cmd)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, cmd.Err(), circuitbreaker.ErrOpen)
	assert.False(t, called)

	pipeline := hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })
	cmds := []goredis.Cmder{goredis.NewStringCmd(ctx, "get", "a"), goredis.NewStringCmd(ctx, "get", "b")}
	assert.ErrorIs(t, pipeline(ctx, cmds), circuitbreaker.ErrOpen)
	for _, c := range cmds {
		assert.ErrorIs(t, c.Err(), circuitbreaker.ErrOpen)
	}
}

func TestMetricsHook_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRedisMetrics(reg)
	hook := NewMetricsHook(m)
	ctx := context.Background()

	_ = hook.ProcessHook(succeeding)(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	_ = hook.ProcessHook(missing)(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	_ = hook.ProcessHook(failing)(ctx, goredis.NewStringCmd(ctx, "get", "k"))
	_ = hook.ProcessPipelineHook(func(context.Context, []goredis.Cmder) error { return nil })(ctx, nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Ops.WithLabelValues("get", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Ops.WithLabelValues("get", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Ops.WithLabelValues("pipeline", "success")))
}
