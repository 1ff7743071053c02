package connection

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

// Close codes the backend uses when it rejects the token on the socket.
const (
	CodeAuthMissing     = 4001
	CodeAuthInvalid     = 4002
	CodeAuthExpired     = 4003
	CodeAuthUserUnknown = 4004
	CodeAuthForbidden   = 4005
)

type outcome int

const (
	outcomeTransient outcome = iota
	outcomeNormal
	outcomeAuth
)

func (o outcome) String() string {
	switch o {
	case outcomeNormal:
		return "normal"
	case outcomeAuth:
		return "auth"
	default:
		return "transient"
	}
}

// IsAuthSuspect reports whether a close code hints at a rejected credential:
// protocol error, abnormal closure, policy violation and the backend's own
// 4001-4005 range.
func IsAuthSuspect(code int) bool {
	switch code {
	case websocket.CloseProtocolError, websocket.CloseAbnormalClosure, websocket.ClosePolicyViolation:
		return true
	}
	return code >= CodeAuthMissing && code <= CodeAuthForbidden
}

// classifyClose maps a read error from an open socket.
func classifyClose(err error) (outcome, int) {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return outcomeTransient, 0
	}
	switch {
	case closeErr.Code == websocket.CloseNormalClosure:
		return outcomeNormal, closeErr.Code
	case IsAuthSuspect(closeErr.Code):
		return outcomeAuth, closeErr.Code
	default:
		return outcomeTransient, closeErr.Code
	}
}

// classifyDial maps a failed handshake. Only an explicit 401/403 counts as
// an authentication failure; everything else is retried.
func classifyDial(resp *http.Response, err error) outcome {
	if err == nil {
		return outcomeNormal
	}
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return outcomeAuth
	}
	return outcomeTransient
}
