package domain

import "context"

// Identity is the user record returned by the login and profile endpoints.
type Identity struct {
	ID     int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	UnitID *int   `json:"unit_id,omitempty"`
}

const RoleManager = "manager"

func (i *Identity) IsManager() bool {
	return i != nil && i.Role == RoleManager
}

// Snapshot is an immutable view of the session at one point in time.
type Snapshot struct {
	Credential string
	Identity   *Identity
}

// Authenticated reports whether a credential is present.
func (s Snapshot) Authenticated() bool {
	return s.Credential != ""
}

// Invalidation reasons passed to the session manager.
const (
	ReasonLogout                    = "logout"
	ReasonValidationFailed          = "validation-failed"
	ReasonRequestUnauthorized       = "request-unauthorized"
	ReasonConnectionAuthFailed      = "connection-authentication-failed"
	ReasonConnectionReportedAuthErr = "connection-reported-authentication-error"
)

type SessionEventKind int

const (
	SessionOpened SessionEventKind = iota
	SessionClosed
)

func (k SessionEventKind) String() string {
	switch k {
	case SessionOpened:
		return "opened"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionEvent is emitted by the session manager on every effective state change.
type SessionEvent struct {
	Kind   SessionEventKind
	Reason string
}

// CredentialStore persists the credential and the serialized identity.
// Both entries are written together and cleared together.
type CredentialStore interface {
	Load(ctx context.Context) (credential string, identity []byte, err error)
	Save(ctx context.Context, credential string, identity []byte) error
	Clear(ctx context.Context) error
}

// Invalidator is the single teardown path for the session.
type Invalidator interface {
	Invalidate(ctx context.Context, reason string) bool
}

// CredentialSource exposes the current credential to outbound traffic.
type CredentialSource interface {
	Credential() string
}
