package auth

import (
	"context"
	"strings"
	"time"
)

const (
	defaultIssuer     = "panel"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service verifies credentials and mints access/refresh token pairs.
type Service struct {
	store Store
	now   func() time.Time

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) {
		if v := strings.TrimSpace(issuer); v != "" {
			s.issuer = v
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service signing tokens with the given secret.
func NewService(store Store, secret string, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(secret) == "" {
		return nil, ErrInvalidInput
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Identity is the authenticated subject a token pair was minted for.
type Identity struct {
	UserID string
	Roles  []string
}

// IssueTokenPair authenticates credentials and mints tokens bound to the
// given session id.
func (s *Service) IssueTokenPair(ctx context.Context, sessionID, email, password string) (TokenPair, Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || strings.TrimSpace(sessionID) == "" {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return TokenPair{}, Identity{}, ErrInvalidCredentials
	}
	roles, err := users.Roles(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	identity := Identity{UserID: user.ID, Roles: dedupeRoles(roles)}
	pair, err := s.mintTokens(ctx, identity, sessionID)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// RefreshTokenPair rotates the refresh token and issues new credentials.
// The presented token is revoked whether or not rotation succeeds.
func (s *Service) RefreshTokenPair(ctx context.Context, sessionID, refreshToken string) (TokenPair, Identity, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	store := s.store.RefreshTokens(ctx)
	record, err := store.Find(ctx, tokenID)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = store.MarkRevoked(ctx, record.ID)
		return TokenPair{}, Identity{}, ErrInvalidToken
	}

	users := s.store.Users(ctx)
	user, err := users.Find(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	if user.Status != UserStatusActive {
		_ = store.MarkRevoked(ctx, record.ID)
		return TokenPair{}, Identity{}, ErrInvalidToken
	}
	roles, err := users.Roles(ctx, user.ID)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}

	if err := store.MarkRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, Identity{}, err
	}

	identity := Identity{UserID: user.ID, Roles: dedupeRoles(roles)}
	pair, err := s.mintTokens(ctx, identity, sessionID)
	if err != nil {
		return TokenPair{}, Identity{}, err
	}
	return pair, identity, nil
}

// RevokeUserTokens revokes every outstanding refresh token for a user.
func (s *Service) RevokeUserTokens(ctx context.Context, userID string) error {
	return s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, userID)
}

func (s *Service) mintTokens(ctx context.Context, identity Identity, sessionID string) (TokenPair, error) {
	now := s.now().UTC()
	accessToken, accessExp, err := s.signAccessToken(identity.UserID, sessionID, identity.Roles, now)
	if err != nil {
		return TokenPair{}, err
	}
	refreshString, rec, err := s.generateRefreshToken(identity.UserID, sessionID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}
