package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pscheid92/leavenotify/internal/domain"
)

// ParseOAuthCallback reads the session out of the frontend redirect the
// backend issues after a Google login:
// <frontend>/auth/callback?token=...&user_id=...&email=...&name=...
// A bare token is accepted as well.
func ParseOAuthCallback(raw string) (*LoginResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty callback")
	}
	if !strings.Contains(raw, "token=") {
		return &LoginResult{Token: raw}, nil
	}

	query := raw
	if i := strings.Index(raw, "?"); i >= 0 {
		query = raw[i+1:]
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid callback query: %w", err)
	}

	res := &LoginResult{Token: values.Get("token")}
	if res.Token == "" {
		return nil, fmt.Errorf("callback carries no token")
	}
	if id := values.Get("user_id"); id != "" {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, fmt.Errorf("invalid user_id %q: %w", id, err)
		}
		res.Identity.ID = n
	}
	res.Identity.Email = values.Get("email")
	res.Identity.Name = values.Get("name")
	return res, nil
}

// Complete reports whether the callback already carried a usable identity.
func (r *LoginResult) Complete() bool {
	return r.Identity.ID != 0 && r.Identity.Email != ""
}

// IdentityRef returns the identity as a pointer for the session manager.
func (r *LoginResult) IdentityRef() *domain.Identity {
	id := r.Identity
	return &id
}
