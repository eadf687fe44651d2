package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestService(t *testing.T, store *MemoryStore, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(store, "test-secret", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssueTokenPair(t *testing.T) {
	store := NewMemoryStore()
	userID, err := store.SeedUser("yonetici@dernek.org", "parola123", "admin")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := newTestService(t, store)

	pair, identity, err := svc.IssueTokenPair(context.Background(), "sess-1", "yonetici@dernek.org", "parola123")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}
	if identity.UserID != userID {
		t.Fatalf("unexpected user id %q", identity.UserID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens minted")
	}
	if !pair.AccessExpiresAt.Before(pair.RefreshExpiresAt) {
		t.Fatal("access token must expire before refresh token")
	}

	claims, err := svc.VerifyAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != userID {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.SessionID != "sess-1" {
		t.Fatalf("unexpected session id %q", claims.SessionID)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
}

func TestIssueTokenPairRejectsBadCredentials(t *testing.T) {
	store := NewMemoryStore()
	userID, _ := store.SeedUser("uye@dernek.org", "parola123", "member")
	svc := newTestService(t, store)

	cases := []struct {
		name            string
		email, password string
	}{
		{"wrong password", "uye@dernek.org", "yanlis"},
		{"unknown user", "kimse@dernek.org", "parola123"},
		{"empty password", "uye@dernek.org", ""},
	}
	for _, tc := range cases {
		if _, _, err := svc.IssueTokenPair(context.Background(), "s", tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}

	store.SetStatus(userID, UserStatusDisabled)
	if _, _, err := svc.IssueTokenPair(context.Background(), "s", "uye@dernek.org", "parola123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("disabled user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshTokenPairRotates(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.SeedUser("uye@dernek.org", "parola123", "member"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := newTestService(t, store)

	pair, _, err := svc.IssueTokenPair(context.Background(), "sess-1", "uye@dernek.org", "parola123")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	next, _, err := svc.RefreshTokenPair(context.Background(), "sess-1", pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokenPair: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token must rotate")
	}

	// Old token was revoked by rotation; replaying it must fail.
	if _, _, err := svc.RefreshTokenPair(context.Background(), "sess-1", pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on replay, got %v", err)
	}
}

func TestRefreshTokenPairRejectsExpired(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.SeedUser("uye@dernek.org", "parola123", "member"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	current := time.Now().UTC()
	svc := newTestService(t, store, WithClock(func() time.Time { return current }))

	pair, _, err := svc.IssueTokenPair(context.Background(), "sess-1", "uye@dernek.org", "parola123")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	current = current.Add(defaultRefreshTTL + time.Hour)
	if _, _, err := svc.RefreshTokenPair(context.Background(), "sess-1", pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyAccessTokenRejectsExpired(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.SeedUser("uye@dernek.org", "parola123", "member"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	current := time.Now().UTC()
	svc := newTestService(t, store, WithClock(func() time.Time { return current }), WithAccessTTL(time.Minute))

	pair, _, err := svc.IssueTokenPair(context.Background(), "sess-1", "uye@dernek.org", "parola123")
	if err != nil {
		t.Fatalf("IssueTokenPair: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := svc.VerifyAccessToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	for _, token := range []string{"", "abc", "a.b.c", "  "} {
		if _, err := svc.VerifyAccessToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestSplitRefreshToken(t *testing.T) {
	if _, _, err := splitRefreshToken("no-dot"); err == nil {
		t.Fatal("expected error for token without separator")
	}
	if _, _, err := splitRefreshToken(".secret"); err == nil {
		t.Fatal("expected error for empty id")
	}
	id, secret, err := splitRefreshToken("abc.def")
	if err != nil || id != "abc" || secret != "def" {
		t.Fatalf("unexpected split: %q %q %v", id, secret, err)
	}
}
