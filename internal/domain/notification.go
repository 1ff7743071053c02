package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audience tells whether a notification targeted the user or the manager role.
type Audience string

const (
	AudienceUser    Audience = "user"
	AudienceManager Audience = "manager"
)

// NotificationRecord is one entry of the bounded notification log.
type NotificationRecord struct {
	ID        uuid.UUID         `json:"id"`
	Category  string            `json:"category"`
	Audience  Audience          `json:"audience"`
	Payload   *NotificationData `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Read      bool              `json:"read"`
	Message   string            `json:"message"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Toast is a transient, self-expiring user-facing message.
type Toast struct {
	ID       int           `json:"id"`
	Message  string        `json:"message"`
	Severity Severity      `json:"severity"`
	TTL      time.Duration `json:"ttl"`
}

// Alerter emits passive system-level alerts.
type Alerter interface {
	Alert(ctx context.Context, title, body string) error
}

// Navigator moves the user interface to another location.
type Navigator interface {
	CurrentPath() string
	Navigate(path string)
}
