package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kafkasder-git/panel/internal/auth"
	"github.com/kafkasder-git/panel/internal/ids"
	"github.com/kafkasder-git/panel/internal/obs"
)

const defaultExchangeTimeout = 10 * time.Second

// Exchanger performs the credential and token exchanges backing the
// session lifecycle. *auth.Service satisfies it.
type Exchanger interface {
	IssueTokenPair(ctx context.Context, sessionID, email, password string) (auth.TokenPair, auth.Identity, error)
	RefreshTokenPair(ctx context.Context, sessionID, refreshToken string) (auth.TokenPair, auth.Identity, error)
}

// Manager owns session lifecycle: login, silent refresh and logout.
// Refreshes for one session are single-flight: concurrent callers racing on
// an expired access token share one exchange and observe its result.
type Manager struct {
	store *TokenStore
	exch  Exchanger

	now       func() time.Time
	timeout   time.Duration
	onDestroy func(sessionID string)

	flight singleflight.Group
}

// ManagerOption configures Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithExchangeTimeout bounds how long a login or refresh exchange may take.
func WithExchangeTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithDestroyHook registers a callback invoked whenever a session is
// destroyed, by logout or by refresh failure.
func WithDestroyHook(fn func(sessionID string)) ManagerOption {
	return func(m *Manager) { m.onDestroy = fn }
}

// NewManager constructs a Manager over the given store and exchanger.
func NewManager(store *TokenStore, exch Exchanger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		exch:    exch,
		now:     time.Now,
		timeout: defaultExchangeTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login authenticates credentials and creates a fresh session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sessionID := ids.New()
	pair, identity, err := m.exch.IssueTokenPair(ctx, sessionID, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	sess := Session{
		ID:               sessionID,
		UserID:           identity.UserID,
		Roles:            identity.Roles,
		IssuedAt:         m.now().UTC(),
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
	m.store.Put(sess, pair)
	return &sess, nil
}

// Current returns the live session for the id. When the access token has
// expired and the refresh token is still valid it performs one silent
// refresh; any refresh failure surfaces as ErrUnauthenticated.
func (m *Manager) Current(ctx context.Context, sessionID string) (*Session, error) {
	sess, _, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrUnauthenticated
	}
	if m.now().Before(sess.AccessExpiresAt) {
		return &sess, nil
	}
	refreshed, err := m.Refresh(ctx, sessionID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return refreshed, nil
}

// Refresh exchanges the session's refresh token for a new pair. Concurrent
// callers for the same session are queued onto the in-flight exchange and
// receive its result. On failure the session is destroyed and every queued
// caller observes ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context, sessionID string) (*Session, error) {
	v, err, _ := m.flight.Do(sessionID, func() (any, error) {
		return m.refresh(sessionID)
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	sess := v.(Session)
	return &sess, nil
}

// refresh runs outside the caller's context: queued waiters must not have
// the shared exchange cancelled from under them by the first caller.
func (m *Manager) refresh(sessionID string) (any, error) {
	sess, tokens, ok := m.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionExpired
	}
	now := m.now()
	// A previous flight may have refreshed just before we were queued.
	if now.Before(sess.AccessExpiresAt) {
		return sess, nil
	}
	if now.After(sess.RefreshExpiresAt) {
		m.destroy(sessionID)
		obs.CountRefresh("expired")
		return nil, ErrSessionExpired
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	next, identity, err := m.exch.RefreshTokenPair(ctx, sessionID, tokens.RefreshToken)
	if err != nil {
		m.destroy(sessionID)
		obs.CountRefresh("expired")
		return nil, ErrSessionExpired
	}

	updated := Session{
		ID:               sessionID,
		UserID:           identity.UserID,
		Roles:            identity.Roles,
		IssuedAt:         sess.IssuedAt,
		AccessExpiresAt:  next.AccessExpiresAt,
		RefreshExpiresAt: next.RefreshExpiresAt,
	}
	// A logout issued while the exchange was in flight wins; the refresh
	// result is moot and waiters observe an expired session.
	if !m.store.Replace(sessionID, updated, next) {
		obs.CountRefresh("expired")
		return nil, ErrSessionExpired
	}
	obs.CountRefresh("ok")
	return updated, nil
}

// Logout destroys the session and its tokens. Calling it without an active
// session is a no-op.
func (m *Manager) Logout(_ context.Context, sessionID string) {
	m.destroy(sessionID)
}

func (m *Manager) destroy(sessionID string) {
	if m.store.Delete(sessionID) && m.onDestroy != nil {
		m.onDestroy(sessionID)
	}
}
