package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/kafkasder-git/panel/internal/ids"
)

// MemoryStore is an in-memory Store used in tests and single-node setups
// without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string
	roles   map[string][]string
	refresh map[string]*RefreshToken
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		roles:   make(map[string][]string),
		refresh: make(map[string]*RefreshToken),
	}
}

func (m *MemoryStore) Users(context.Context) UserStore                 { return (*memoryUsers)(m) }
func (m *MemoryStore) RefreshTokens(context.Context) RefreshTokenStore { return (*memoryRefresh)(m) }

// SeedUser creates a user with the given roles and returns its id.
func (m *MemoryStore) SeedUser(email, password string, roles ...string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	user := &User{
		ID:           ids.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Status:       UserStatusActive,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[user.Email]; exists {
		return "", ErrConflict
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user.ID
	m.roles[user.ID] = dedupeRoles(roles)
	return user.ID, nil
}

// SetStatus updates a seeded user's status.
func (m *MemoryStore) SetStatus(userID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.Status = status
	}
}

type memoryUsers MemoryStore

func (m *memoryUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if _, exists := m.byEmail[u.Email]; exists {
		return ErrConflict
	}
	clone := *u
	m.users[u.ID] = &clone
	m.byEmail[u.Email] = u.ID
	return nil
}

func (m *memoryUsers) Find(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *m.users[id]
	return &clone, nil
}

func (m *memoryUsers) Roles(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roles := m.roles[userID]
	out := make([]string, len(roles))
	copy(out, roles)
	return out, nil
}

type memoryRefresh MemoryStore

func (m *memoryRefresh) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.refresh[tok.ID]; exists {
		return ErrConflict
	}
	clone := *tok
	m.refresh[tok.ID] = &clone
	return nil
}

func (m *memoryRefresh) Find(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tok, ok := m.refresh[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *tok
	return &clone, nil
}

func (m *memoryRefresh) MarkRevoked(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (m *memoryRefresh) MarkRevokedByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.refresh {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}
