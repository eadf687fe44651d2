package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users(ctx context.Context) UserStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// UserStore manages operator accounts and their role assignments.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Roles(ctx context.Context, userID string) ([]string, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	Find(ctx context.Context, id string) (*RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
	MarkRevokedByUser(ctx context.Context, userID string) error
}
