package auth

import "time"

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is a panel operator account.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is the persisted half of a refresh credential. Only the
// SHA-256 of the client secret is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// TokenPair bundles freshly minted access and refresh credentials.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
