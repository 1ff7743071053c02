package domain

import "time"

type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateClosing
	StateReconnecting
	StateExhausted
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ReconnectPolicy describes linear reconnection backoff.
type ReconnectPolicy struct {
	Attempt     int
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the backoff before the given attempt number.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay * time.Duration(attempt)
}

// Exhausted reports whether no further automatic attempt is allowed.
func (p ReconnectPolicy) Exhausted() bool {
	return p.Attempt >= p.MaxAttempts
}

// ConnectionStatus is a read-only view of the connection manager.
type ConnectionStatus struct {
	State       ConnectionState `json:"-"`
	StateName   string          `json:"state"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
}
