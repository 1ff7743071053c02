package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const defaultBackendURL = "http://localhost:8000/"

type Config struct {
	BackendURL string `env:"BACKEND_URL" default:"http://localhost:8000/"`
	LogLevel   string `env:"LOG_LEVEL" default:"info"`
	LogFormat  string `env:"LOG_FORMAT" default:"text"`

	StoreBackend       string `env:"STORE_BACKEND" default:"file"`
	StateDir           string `env:"STATE_DIR"`
	RedisURL           string `env:"REDIS_URL"`
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	StatusAddr string `env:"STATUS_ADDR" default:"127.0.0.1:8765"`

	AlertsEnabled      bool    `env:"ALERTS_ENABLED" default:"false"`
	AlertWebhookURL    string  `env:"ALERT_WEBHOOK_URL"`
	AlertRatePerMinute float64 `env:"ALERT_RATE_PER_MINUTE" default:"12"`

	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" default:"2s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = defaultBackendURL
	}
	if !strings.HasSuffix(cfg.BackendURL, "/") {
		cfg.BackendURL += "/"
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return fmt.Errorf("BACKEND_URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("BACKEND_URL must include a host")
	}

	switch cfg.StoreBackend {
	case "file", "memory":
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of file, redis, memory, got %q", cfg.StoreBackend)
	}

	if cfg.TokenEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if cfg.AlertsEnabled && cfg.AlertWebhookURL == "" {
		return fmt.Errorf("ALERT_WEBHOOK_URL is required when ALERTS_ENABLED is set")
	}

	if cfg.ReconnectMaxAttempts < 0 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must not be negative")
	}
	if cfg.ReconnectBaseDelay <= 0 || cfg.HeartbeatInterval <= 0 || cfg.RequestTimeout <= 0 {
		return fmt.Errorf("RECONNECT_BASE_DELAY, HEARTBEAT_INTERVAL and REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// WebSocketURL derives the notification endpoint from the backend URL.
func (c *Config) WebSocketURL() string {
	return WebSocketURL(c.BackendURL)
}

// WebSocketURL translates an http(s) base URL into the ws(s) notification endpoint.
func WebSocketURL(backendURL string) string {
	base := backendURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "ws"
}
