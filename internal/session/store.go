package session

import (
	"sync"

	"github.com/kafkasder-git/panel/internal/auth"
)

// TokenStore holds the current token pair and session metadata per session
// id. It is bookkeeping only; lifecycle decisions live in Manager.
type TokenStore struct {
	mu      sync.RWMutex
	records map[string]tokenRecord
}

type tokenRecord struct {
	session Session
	tokens  auth.TokenPair
}

// NewTokenStore constructs an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{records: make(map[string]tokenRecord)}
}

// Put stores or overwrites the record for a session.
func (s *TokenStore) Put(sess Session, tokens auth.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sess.ID] = tokenRecord{session: sess, tokens: tokens}
}

// Get returns copies of the session and its tokens.
func (s *TokenStore) Get(sessionID string) (Session, auth.TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionID]
	if !ok {
		return Session{}, auth.TokenPair{}, false
	}
	return rec.session, rec.tokens, true
}

// Replace updates the record only if the session still exists. It reports
// whether the update took place.
func (s *TokenStore) Replace(sessionID string, sess Session, tokens auth.TokenPair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sessionID]; !ok {
		return false
	}
	s.records[sessionID] = tokenRecord{session: sess, tokens: tokens}
	return true
}

// Delete removes the record and reports whether it existed.
func (s *TokenStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[sessionID]; !ok {
		return false
	}
	delete(s.records, sessionID)
	return true
}

// Len reports the number of live sessions.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
