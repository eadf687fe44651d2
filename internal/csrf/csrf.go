// Package csrf issues and validates per-session anti-forgery tokens. One
// live token exists per session; a successful validation on a mutating
// operation rotates it so a captured value cannot be replayed.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"sync"
)

const tokenBytes = 32

// ErrMismatch reports a missing, stale or foreign anti-forgery token.
var ErrMismatch = errors.New("csrf: token mismatch")

// Guard stores one anti-forgery token per session id.
type Guard struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewGuard constructs an empty Guard.
func NewGuard() *Guard {
	return &Guard{tokens: make(map[string]string)}
}

// Issue generates a fresh random token for the session, replacing any
// previous value.
func (g *Guard) Issue(sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrMismatch
	}
	token, err := generate()
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.tokens[sessionID] = token
	g.mu.Unlock()
	return token, nil
}

// Validate compares the supplied token against the stored one in constant
// time. A destroyed or unknown session always fails.
func (g *Guard) Validate(sessionID, supplied string) error {
	if sessionID == "" || supplied == "" {
		return ErrMismatch
	}
	g.mu.Lock()
	stored, ok := g.tokens[sessionID]
	g.mu.Unlock()
	if !ok {
		return ErrMismatch
	}
	if len(stored) != len(supplied) {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return ErrMismatch
	}
	return nil
}

// ValidateAndRotate validates the supplied token and, on success, replaces
// it with a fresh one. The compare and the overwrite happen under one
// critical section: of any set of concurrent requests replaying the same
// token, exactly one is accepted. The rotated token is returned for the
// caller to hand back to the client.
func (g *Guard) ValidateAndRotate(sessionID, supplied string) (string, error) {
	if sessionID == "" || supplied == "" {
		return "", ErrMismatch
	}
	next, err := generate()
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	stored, ok := g.tokens[sessionID]
	if !ok || len(stored) != len(supplied) {
		return "", ErrMismatch
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		return "", ErrMismatch
	}
	g.tokens[sessionID] = next
	return next, nil
}

// Drop removes the session's token. Called on logout and session expiry.
func (g *Guard) Drop(sessionID string) {
	g.mu.Lock()
	delete(g.tokens, sessionID)
	g.mu.Unlock()
}

func generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
