// Package session owns the token lifecycle for panel sessions: login,
// silent refresh, and logout. Tokens never leave the process; callers hold
// only an opaque session id.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials reports a failed login.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrUnauthenticated reports that no usable session exists.
	ErrUnauthenticated = errors.New("session: unauthenticated")
	// ErrSessionExpired reports that the refresh credential is spent and
	// the session has been destroyed.
	ErrSessionExpired = errors.New("session: expired")
)

// Session is the metadata of an authenticated panel session.
type Session struct {
	ID               string
	UserID           string
	Roles            []string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type sessionContextKey struct{}

// ContextWithSession attaches the authenticated session to the context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	if sess == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// FromContext extracts the authenticated session from the context.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
