// Package alert delivers passive system alerts for new notifications.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pscheid92/leavenotify/internal/platform/retry"
	"github.com/pscheid92/leavenotify/internal/platform/version"
)

const webhookTimeout = 10 * time.Second

// Webhook posts {"title", "message", "agent"} as JSON. Gotify, Apprise and
// most generic webhook receivers accept this shape.
type Webhook struct {
	URL    string
	client *http.Client
	policy retry.Policy
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		client: &http.Client{Timeout: webhookTimeout},
		policy: retry.Policy{
			MaxAttempts:      3,
			Backoff:          retry.Exponential(time.Second),
			RateLimitBackoff: 10 * time.Second,
		},
	}
}

type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("webhook returned status %d", e.code) }

func (w *Webhook) Alert(ctx context.Context, title, body string) error {
	payload := map[string]string{"title": title, "message": body, "agent": "leavenotify"}
	if err := retry.DoVoid(ctx, w.policy, classify, func() error { return w.post(ctx, payload) }); err != nil {
		return fmt.Errorf("alert webhook: %w", err)
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

func classify(err error) retry.Action {
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return retry.After
		case se.code >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}
