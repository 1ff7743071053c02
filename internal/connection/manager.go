// Package connection keeps the single notification WebSocket open while the
// session is valid: connect, heartbeat, reconnect with linear backoff, and
// detection of authentication failures on the socket.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/leavenotify/internal/adapter/metrics"
	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/loop"
	"github.com/pscheid92/leavenotify/internal/platform/correlation"
)

const disconnectReason = "User disconnected"

var ErrSendBufferFull = errors.New("send buffer full")

// Session is the part of the session manager the connection depends on.
type Session interface {
	Credential() string
	Validate(ctx context.Context, done func(valid bool))
	Invalidate(ctx context.Context, reason string) bool
}

// Handler receives every parsed inbound message, on the loop, in receipt order.
type Handler interface {
	Handle(ctx context.Context, msg domain.Message)
}

type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Config struct {
	URL               string
	MaxAttempts       int
	BaseDelay         time.Duration
	HeartbeatInterval time.Duration
}

// Manager state is owned by the loop. Every exported method except Status
// must be called from the loop.
type Manager struct {
	loop    *loop.Loop
	session Session
	handler Handler
	dialer  Dialer
	metrics *metrics.ConnectionMetrics
	cfg     Config
	// socket deadlines always follow wall time
	ioClock clockwork.Clock

	ctx        context.Context
	state      domain.ConnectionState
	policy     domain.ReconnectPolicy
	lastErr    error
	generation uint64
	validating bool
	writer     *writer
	heartbeat  *loop.Ticker
	reconnect  *loop.Timer
	cancelDial context.CancelFunc

	status    atomic.Pointer[domain.ConnectionStatus]
	mu        sync.Mutex
	listeners []func(domain.ConnectionStatus)
}

func NewManager(l *loop.Loop, session Session, handler Handler, dialer Dialer, m *metrics.ConnectionMetrics, cfg Config) *Manager {
	if dialer == nil {
		dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	}
	mgr := &Manager{
		loop:    l,
		session: session,
		handler: handler,
		dialer:  dialer,
		metrics: m,
		cfg:     cfg,
		ioClock: clockwork.NewRealClock(),
		ctx:     context.Background(),
		state:   domain.StateIdle,
		policy:  domain.ReconnectPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay},
	}
	mgr.publish()
	return mgr
}

// OnStatus registers fn for every state change. Called on the loop.
func (m *Manager) OnStatus(fn func(domain.ConnectionStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Status is safe from any goroutine.
func (m *Manager) Status() domain.ConnectionStatus {
	return *m.status.Load()
}

func (m *Manager) State() domain.ConnectionState { return m.state }

// Connect opens the socket after validating the session. It is a no-op while
// open, connecting, validating or without a credential. From Exhausted it
// starts over with a fresh attempt budget.
func (m *Manager) Connect(ctx context.Context) {
	m.ctx = context.WithoutCancel(ctx)
	if m.state == domain.StateExhausted {
		m.policy.Attempt = 0
		m.lastErr = nil
	}
	m.connect()
}

func (m *Manager) connect() {
	switch {
	case m.state == domain.StateOpen, m.state == domain.StateConnecting, m.state == domain.StateClosing:
		return
	case m.validating:
		return
	case m.session.Credential() == "":
		slog.DebugContext(m.ctx, "No credential, not connecting")
		return
	}

	if m.state == domain.StateReconnecting {
		m.reconnect.Stop()
		m.reconnect = nil
	}

	m.validating = true
	gen := m.generation
	m.session.Validate(m.ctx, func(valid bool) {
		if gen != m.generation {
			return
		}
		m.validating = false
		if !valid {
			slog.InfoContext(m.ctx, "Session validation failed, connection aborted")
			return
		}
		m.dial()
	})
}

func (m *Manager) dial() {
	credential := m.session.Credential()
	if credential == "" {
		return
	}

	m.generation++
	gen := m.generation
	m.setState(domain.StateConnecting)

	ctx := correlation.WithID(m.ctx, correlation.NewID())
	dialCtx, cancel := context.WithCancel(ctx)
	m.cancelDial = cancel

	target := m.cfg.URL + "?token=" + url.QueryEscape(credential)
	header := http.Header{}
	correlation.Inject(ctx, header)

	slog.InfoContext(ctx, "Connecting", "url", m.cfg.URL, "attempt", m.policy.Attempt)
	go func() {
		conn, resp, err := m.dialer.DialContext(dialCtx, target, header)
		if !m.loop.Post(func() { m.onDialResult(ctx, gen, conn, resp, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) onDialResult(ctx context.Context, gen uint64, conn *websocket.Conn, resp *http.Response, err error) {
	if gen != m.generation {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		slog.WarnContext(ctx, "Connection attempt failed", "error", err, "status", status)
		m.handleFailure(ctx, classifyDial(resp, err), fmt.Errorf("dial: %w", err))
		return
	}

	m.writer = newWriter(conn, m.ioClock)
	m.policy.Attempt = 0
	m.lastErr = nil
	m.setState(domain.StateOpen)
	m.heartbeat = m.loop.Every(m.cfg.HeartbeatInterval, func() {
		if m.state == domain.StateOpen {
			_ = m.Ping()
		}
	})
	slog.InfoContext(ctx, "Connection open")

	go m.readLoop(ctx, gen, conn)
}

func (m *Manager) readLoop(ctx context.Context, gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.loop.Post(func() { m.onReadError(ctx, gen, err) })
			return
		}
		if !m.loop.Post(func() { m.onMessage(ctx, gen, data) }) {
			_ = conn.Close()
			return
		}
	}
}

func (m *Manager) onMessage(ctx context.Context, gen uint64, data []byte) {
	if gen != m.generation {
		return
	}
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.WarnContext(ctx, "Dropping unparseable message", "error", err, "size", len(data))
		return
	}
	m.metrics.MessagesReceived.WithLabelValues(string(msg.Type)).Inc()
	m.handler.Handle(ctx, msg)
}

func (m *Manager) onReadError(ctx context.Context, gen uint64, err error) {
	if gen != m.generation {
		return
	}
	m.teardown()

	kind, code := classifyClose(err)
	slog.InfoContext(ctx, "Connection closed", "code", code, "outcome", kind.String(), "error", err)
	m.handleFailure(ctx, kind, fmt.Errorf("connection closed: %w", err))
}

func (m *Manager) handleFailure(ctx context.Context, kind outcome, err error) {
	switch kind {
	case outcomeNormal:
		m.setState(domain.StateIdle)
	case outcomeAuth:
		m.setState(domain.StateIdle)
		if m.session.Credential() != "" {
			m.session.Invalidate(ctx, domain.ReasonConnectionAuthFailed)
		}
	default:
		m.lastErr = err
		if m.session.Credential() == "" {
			m.setState(domain.StateIdle)
			return
		}
		m.scheduleReconnect(ctx, err)
	}
}

func (m *Manager) scheduleReconnect(ctx context.Context, cause error) {
	if m.policy.Exhausted() {
		m.lastErr = fmt.Errorf("gave up after %d reconnect attempts: %w", m.policy.MaxAttempts, cause)
		m.metrics.Exhaustions.Inc()
		slog.ErrorContext(ctx, "Reconnect attempts exhausted", "max_attempts", m.policy.MaxAttempts, "error", cause)
		m.setState(domain.StateExhausted)
		return
	}

	m.policy.Attempt++
	next := m.policy.Attempt
	delay := m.policy.Delay(next)
	m.metrics.Reconnects.Inc()
	slog.WarnContext(ctx, "Reconnect scheduled", "attempt", next, "delay", delay)
	m.setState(domain.StateReconnecting)
	m.reconnect = m.loop.AfterFunc(delay, func() {
		m.reconnect = nil
		m.connect()
	})
}

// teardown cancels timers before releasing the socket.
func (m *Manager) teardown() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.writer != nil {
		go m.writer.stop()
		m.writer = nil
	}
}

// Disconnect closes the socket normally and cancels any pending heartbeat,
// dial or reconnect.
func (m *Manager) Disconnect(ctx context.Context) {
	if m.state == domain.StateIdle && !m.validating {
		return
	}

	m.generation++
	m.validating = false
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if w := m.writer; w != nil {
		m.setState(domain.StateClosing)
		m.writer = nil
		go w.stopGraceful(websocket.CloseNormalClosure, disconnectReason)
	}

	m.policy.Attempt = 0
	m.lastErr = nil
	m.setState(domain.StateIdle)
	slog.InfoContext(ctx, "Disconnected")
}

// Send serializes msg and queues it. Dropped with an error when not open.
func (m *Manager) Send(msg domain.Message) error {
	if m.state != domain.StateOpen || m.writer == nil {
		slog.Warn("Not connected, dropping message", "type", msg.Type)
		return domain.ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	if !m.writer.enqueue(data) {
		m.metrics.SendDropped.Inc()
		slog.Warn("Send buffer full, dropping message", "type", msg.Type)
		return ErrSendBufferFull
	}
	m.metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	return nil
}

func (m *Manager) Ping() error {
	return m.Send(domain.Message{Type: domain.MessagePing})
}

func (m *Manager) RequestConnectedUsers() error {
	return m.Send(domain.Message{Type: domain.MessageGetConnectedUsers})
}

func (m *Manager) setState(s domain.ConnectionState) {
	m.state = s
	m.metrics.ObserveState(s)
	m.publish()
}

func (m *Manager) publish() {
	st := &domain.ConnectionStatus{
		State:       m.state,
		StateName:   m.state.String(),
		Attempt:     m.policy.Attempt,
		MaxAttempts: m.policy.MaxAttempts,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	m.status.Store(st)

	m.mu.Lock()
	listeners := make([]func(domain.ConnectionStatus), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(*st)
	}
}
