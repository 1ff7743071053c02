package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/gateway"
)

// Login authenticates and establishes the session.
func (a *App) Login(ctx context.Context, email, password string) (*domain.Identity, error) {
	res, err := a.gateway.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.establish(ctx, res.Token, res.IdentityRef())
}

// CompleteOAuth establishes the session from the Google login redirect. The
// identity is fetched from the profile endpoint when the redirect lacks it.
func (a *App) CompleteOAuth(ctx context.Context, callback string) (*domain.Identity, error) {
	res, err := gateway.ParseOAuthCallback(callback)
	if err != nil {
		return nil, err
	}

	identity := res.IdentityRef()
	if !res.Complete() {
		profile, err := a.gateway.ProfileFor(ctx, res.Token)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return nil, fmt.Errorf("oauth token rejected: %w", err)
		case err != nil:
			slog.WarnContext(ctx, "Profile lookup failed, using callback identity", "error", err)
		default:
			identity = profile
		}
	}
	return a.establish(ctx, res.Token, identity)
}

func (a *App) establish(ctx context.Context, token string, identity *domain.Identity) (*domain.Identity, error) {
	var establishErr error
	if err := a.loop.Call(ctx, func() { establishErr = a.session.Establish(ctx, token, identity) }); err != nil {
		return nil, err
	}
	if establishErr != nil {
		return identity, establishErr
	}
	return identity, nil
}

// Logout ends the session. It reports whether a session was active.
func (a *App) Logout(ctx context.Context) (bool, error) {
	var ended bool
	if err := a.loop.Call(ctx, func() { ended = a.session.Invalidate(ctx, domain.ReasonLogout) }); err != nil {
		return false, err
	}
	return ended, nil
}

func (a *App) Register(ctx context.Context, name, email, password string) (*gateway.RegisterResult, error) {
	return a.gateway.Register(ctx, name, email, password)
}

func (a *App) ConfirmRegistration(ctx context.Context, token string) (*gateway.RegisterResult, error) {
	return a.gateway.ConfirmRegistration(ctx, token)
}

func (a *App) GoogleAuthURL(ctx context.Context) (string, error) {
	return a.gateway.GoogleAuthURL(ctx)
}

// Validate probes the credential once and reports whether it is still accepted.
func (a *App) Validate(ctx context.Context) (bool, error) {
	result := make(chan bool, 1)
	if err := a.loop.Call(ctx, func() {
		a.session.Validate(ctx, func(valid bool) { result <- valid })
	}); err != nil {
		return false, err
	}
	select {
	case valid := <-result:
		return valid, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
