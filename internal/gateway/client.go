// Package gateway wraps every HTTP call to the backend. It attaches the
// session credential and reports unauthorized answers through a hook.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/platform/correlation"
	"github.com/pscheid92/leavenotify/internal/platform/retry"
	"github.com/pscheid92/leavenotify/internal/platform/version"
)

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBodyLen = 4096
)

// CredentialFunc adapts a function to domain.CredentialSource.
type CredentialFunc func() string

func (f CredentialFunc) Credential() string { return f() }

type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	credentials    domain.CredentialSource
	onUnauthorized func(ctx context.Context)
	loginRetry     retry.Policy
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on a copy of the current
// *http.Client; a client passed via WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithUnauthorizedHook installs the function called after any 401 answer.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithLoginRetry(p retry.Policy) Option {
	return func(c *Client) { c.loginRetry = p }
}

func NewClient(baseURL string, credentials domain.CredentialSource, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	c := &Client{
		baseURL:     u,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		credentials: credentials,
		loginRetry: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(500 * time.Millisecond),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetUnauthorizedHook replaces the hook after construction.
func (c *Client) SetUnauthorizedHook(fn func(ctx context.Context)) {
	c.onUnauthorized = fn
}

type requestOptions struct {
	skipUnauthorizedHook bool
	credential           string
}

// do performs one request. out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any, ro requestOptions) error {
	ctx, _ = correlation.Ensure(ctx)
	target := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	correlation.Inject(ctx, req.Header)

	credential := ro.credential
	if credential == "" && c.credentials != nil {
		credential = c.credentials.Credential()
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	slog.DebugContext(ctx, "Backend request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		statusErr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Detail: decodeDetail(raw)}
		if resp.StatusCode == http.StatusUnauthorized && !ro.skipUnauthorizedHook && c.onUnauthorized != nil {
			slog.WarnContext(ctx, "Backend rejected credential", "method", method, "path", path)
			c.onUnauthorized(ctx)
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// LoginResult holds the credential and identity returned by login.
type LoginResult struct {
	Token    string
	Identity domain.Identity
}

// Login authenticates with email and password. Network failures and 5xx
// answers are retried; 4xx answers are returned immediately.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	in := map[string]string{"email": email, "password": password}

	policy := c.loginRetry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Login failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
	}

	return retry.Do(ctx, policy, classifyLogin, func() (*LoginResult, error) {
		var resp struct {
			Token string `json:"token"`
			domain.Identity
		}
		// a 401 here means bad credentials, not an expired session
		if err := c.do(ctx, http.MethodPost, "login", in, &resp, requestOptions{skipUnauthorizedHook: true}); err != nil {
			return nil, err
		}
		if resp.Token == "" {
			return nil, fmt.Errorf("login response without token")
		}
		return &LoginResult{Token: resp.Token, Identity: resp.Identity}, nil
	})
}

func classifyLogin(err error) retry.Action {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return retry.After
		}
		if statusErr.Temporary() {
			return retry.Retry
		}
		return retry.Stop
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return retry.Retry
	}
	return retry.Stop
}

// RegisterResult is the backend's acknowledgement of a registration.
type RegisterResult struct {
	Message string `json:"message"`
	UserID  int    `json:"user_id"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	in := map[string]string{"name": name, "email": email, "password": password}
	var out RegisterResult
	if err := c.do(ctx, http.MethodPost, "register", in, &out, requestOptions{skipUnauthorizedHook: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmRegistration redeems the token from the confirmation mail.
func (c *Client) ConfirmRegistration(ctx context.Context, token string) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.do(ctx, http.MethodPost, "register_confirm", map[string]string{"token": token}, &out, requestOptions{skipUnauthorizedHook: true}); err != nil {
		return nil, err
	}
	return &out, nil
}

type profileResponse struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	UnitID *int   `json:"unit_id"`
}

func (p profileResponse) identity() *domain.Identity {
	return &domain.Identity{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role, UnitID: p.UnitID}
}

// Profile fetches the identity of the current credential.
func (c *Client) Profile(ctx context.Context) (*domain.Identity, error) {
	var out profileResponse
	if err := c.do(ctx, http.MethodGet, "profile", nil, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return out.identity(), nil
}

// ValidateCredential probes the profile endpoint without triggering the
// unauthorized hook, so the caller decides how to react.
func (c *Client) ValidateCredential(ctx context.Context) (*domain.Identity, error) {
	var out profileResponse
	if err := c.do(ctx, http.MethodGet, "profile", nil, &out, requestOptions{skipUnauthorizedHook: true}); err != nil {
		return nil, err
	}
	return out.identity(), nil
}

// ProfileFor fetches the identity belonging to a credential that is not yet
// part of the session (OAuth callback).
func (c *Client) ProfileFor(ctx context.Context, credential string) (*domain.Identity, error) {
	var out profileResponse
	ro := requestOptions{skipUnauthorizedHook: true, credential: credential}
	if err := c.do(ctx, http.MethodGet, "profile", nil, &out, ro); err != nil {
		return nil, err
	}
	return out.identity(), nil
}

func (c *Client) GoogleAuthURL(ctx context.Context) (string, error) {
	var out struct {
		AuthURL string `json:"auth_url"`
	}
	if err := c.do(ctx, http.MethodGet, "google/auth-url", nil, &out, requestOptions{}); err != nil {
		return "", err
	}
	if out.AuthURL == "" {
		return "", fmt.Errorf("empty auth url")
	}
	return out.AuthURL, nil
}

func (c *Client) LeaveRequests(ctx context.Context) ([]domain.LeaveRequest, error) {
	var out struct {
		LeaveRequests []domain.LeaveRequest `json:"leave_requests"`
		Count         int                   `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "leave_requests", nil, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return out.LeaveRequests, nil
}
