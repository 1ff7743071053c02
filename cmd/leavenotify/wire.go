package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/leavenotify/internal/adapter/alert"
	"github.com/pscheid92/leavenotify/internal/adapter/httpserver"
	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/adapter/redis"
	"github.com/pscheid92/leavenotify/internal/adapter/store/file"
	"github.com/pscheid92/leavenotify/internal/adapter/store/memory"
	"github.com/pscheid92/leavenotify/internal/adapter/terminal"
	"github.com/pscheid92/leavenotify/internal/app"
	"github.com/pscheid92/leavenotify/internal/connection"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/notification"
	"github.com/pscheid92/leavenotify/internal/platform/config"
	"github.com/pscheid92/leavenotify/internal/platform/crypto"
)

// runtime is everything one command invocation needs.
type runtime struct {
	app          *app.App
	registry     *prometheus.Registry
	healthChecks []httpserver.HealthCheck
	closers      []func() error
}

// wire builds and starts the app. passive commands never open the
// notification connection.
func wire(ctx context.Context, cfg *config.Config, out io.Writer, passive bool) (*runtime, error) {
	rt := &runtime{registry: metrics.NewRegistry()}

	sealer, err := crypto.New(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, err
	}

	store, err := rt.setupStore(ctx, cfg, sealer)
	if err != nil {
		return nil, err
	}

	var alerter domain.Alerter
	if cfg.AlertsEnabled {
		alerter = alert.NewWebhook(cfg.AlertWebhookURL)
	}

	a, err := app.New(app.Config{
		BackendURL:     cfg.BackendURL,
		WebSocketURL:   cfg.WebSocketURL(),
		RequestTimeout: cfg.RequestTimeout,
		Connection: connection.Config{
			MaxAttempts:       cfg.ReconnectMaxAttempts,
			BaseDelay:         cfg.ReconnectBaseDelay,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
		Notification: notification.Config{
			LogCapacity:     notification.DefaultLogCapacity,
			AlertsPerMinute: cfg.AlertRatePerMinute,
		},
		Passive: passive,
	}, app.Deps{
		Store:     store,
		Alerter:   alerter,
		Navigator: terminal.NewNavigator(out, "/"),
		Registry:  rt.registry,
	})
	if err != nil {
		_ = rt.close()
		return nil, err
	}
	rt.app = a

	a.Start()
	if err := a.Restore(ctx); err != nil {
		_ = rt.shutdown(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) setupStore(ctx context.Context, cfg *config.Config, sealer crypto.Sealer) (domain.CredentialStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.New(), nil
	case "redis":
		rm := metrics.NewRedisMetrics(rt.registry)
		rdb, err := redis.NewClient(ctx, cfg.RedisURL,
			redis.NewMetricsHook(rm),
			redis.NewCircuitBreakerHook(redis.BreakerConfig{}, rm),
		)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rdb.Close)
		rt.healthChecks = append(rt.healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		return redis.NewCredentialStore(rdb, sealer, ""), nil
	default:
		dir, err := stateDir(cfg)
		if err != nil {
			return nil, err
		}
		slog.Debug("Using file store", "dir", dir)
		return file.NewStore(dir, sealer), nil
	}
}

func stateDir(cfg *config.Config) (string, error) {
	if cfg.StateDir != "" {
		return cfg.StateDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve state directory, set STATE_DIR: %w", err)
	}
	return filepath.Join(base, "leavenotify"), nil
}

func (rt *runtime) shutdown(ctx context.Context) error {
	var err error
	if rt.app != nil {
		err = rt.app.Shutdown(ctx)
	}
	if cerr := rt.close(); err == nil {
		err = cerr
	}
	return err
}

func (rt *runtime) close() error {
	var first error
	for _, c := range rt.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
