package guard

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/kafkasder-git/panel/internal/csrf"
	"github.com/kafkasder-git/panel/internal/policy"
	"github.com/kafkasder-git/panel/internal/session"
)

type fakeSessions struct {
	sessions map[string]*session.Session
}

func (f *fakeSessions) Current(_ context.Context, sessionID string) (*session.Session, error) {
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, session.ErrUnauthenticated
	}
	return sess, nil
}

func newTestGuard(t *testing.T) (*Guard, *csrf.Guard, *fakeSessions) {
	t.Helper()

	engine := policy.NewEngine(policy.NewTable(map[string][]string{
		"admin":  {policy.PermMembersView, policy.PermMembersEdit},
		"member": {policy.PermDonationsView},
	}))
	csrfGuard := csrf.NewGuard()
	sessions := &fakeSessions{sessions: map[string]*session.Session{
		"admin-sess":  {ID: "admin-sess", UserID: "u-admin", Roles: []string{"admin"}},
		"member-sess": {ID: "member-sess", UserID: "u-member", Roles: []string{"member"}},
	}}

	registry := NewRegistry()
	registry.Protect(http.MethodGet, "/v1/members", policy.PermMembersView)
	registry.Protect(http.MethodPost, "/v1/members", policy.PermMembersEdit)
	registry.Protect(http.MethodGet, "/v1/donations", policy.PermDonationsView)
	registry.Public(http.MethodGet, "/healthz")

	return New(sessions, engine, csrfGuard, registry), csrfGuard, sessions
}

func TestAuthorizePublicResource(t *testing.T) {
	g, _, _ := newTestGuard(t)
	res := g.Authorize(context.Background(), Request{Method: http.MethodGet, Path: "/healthz"})
	if res.Verdict != VerdictAllow {
		t.Fatalf("expected allow for public resource, got %v", res.Verdict)
	}
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	g, _, _ := newTestGuard(t)
	res := g.Authorize(context.Background(), Request{SessionID: "ghost", Method: http.MethodGet, Path: "/v1/members"})
	if res.Verdict != VerdictUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", res.Verdict)
	}
	if res.Session != nil {
		t.Fatal("deny result must not carry a session")
	}
	if res.Verdict.Status() != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", res.Verdict.Status())
	}
}

func TestAuthorizeForbiddenWithoutPermission(t *testing.T) {
	g, _, _ := newTestGuard(t)
	res := g.Authorize(context.Background(), Request{SessionID: "member-sess", Method: http.MethodGet, Path: "/v1/members"})
	if res.Verdict != VerdictForbidden {
		t.Fatalf("expected forbidden, got %v", res.Verdict)
	}
	if res.Verdict.Status() != http.StatusForbidden {
		t.Fatalf("unexpected status %d", res.Verdict.Status())
	}
}

func TestAuthorizeAllowReadOnly(t *testing.T) {
	g, _, _ := newTestGuard(t)
	res := g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodGet, Path: "/v1/members"})
	if res.Verdict != VerdictAllow {
		t.Fatalf("expected allow, got %v", res.Verdict)
	}
	if res.Session == nil || res.Session.UserID != "u-admin" {
		t.Fatalf("expected session on allow, got %+v", res.Session)
	}
	if res.RotatedCSRF != "" {
		t.Fatal("read-only request must not rotate the CSRF token")
	}
}

func TestAuthorizeDenyByDefaultForUnregisteredResource(t *testing.T) {
	g, _, _ := newTestGuard(t)
	// Registered session, full admin role set — the unannotated resource
	// is still denied.
	res := g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodGet, Path: "/v1/unlisted"})
	if res.Verdict != VerdictForbidden {
		t.Fatalf("expected forbidden for unregistered resource, got %v", res.Verdict)
	}
}

func TestAuthorizeMutatingRequiresCSRF(t *testing.T) {
	g, csrfGuard, _ := newTestGuard(t)

	// Without a token.
	res := g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodPost, Path: "/v1/members"})
	if res.Verdict != VerdictCSRFRejected {
		t.Fatalf("expected csrf rejection, got %v", res.Verdict)
	}

	// With the issued token.
	token, err := csrfGuard.Issue("admin-sess")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	res = g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodPost, Path: "/v1/members", CSRFToken: token})
	if res.Verdict != VerdictAllow {
		t.Fatalf("expected allow with token, got %v", res.Verdict)
	}
	if res.RotatedCSRF == "" || res.RotatedCSRF == token {
		t.Fatal("mutating allow must rotate the token")
	}

	// Replaying the consumed token.
	res = g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodPost, Path: "/v1/members", CSRFToken: token})
	if res.Verdict != VerdictCSRFRejected {
		t.Fatalf("expected csrf rejection for replayed token, got %v", res.Verdict)
	}
}

func TestAuthorizeCSRFFromOtherSessionFails(t *testing.T) {
	g, csrfGuard, _ := newTestGuard(t)
	foreign, err := csrfGuard.Issue("member-sess")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	res := g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodPost, Path: "/v1/members", CSRFToken: foreign})
	if res.Verdict != VerdictCSRFRejected {
		t.Fatalf("expected csrf rejection for foreign token, got %v", res.Verdict)
	}
}

func TestAuthorizePolicyUnavailableFailsClosed(t *testing.T) {
	csrfGuard := csrf.NewGuard()
	sessions := &fakeSessions{sessions: map[string]*session.Session{
		"admin-sess": {ID: "admin-sess", UserID: "u-admin", Roles: []string{"admin"}},
	}}
	registry := NewRegistry()
	registry.Protect(http.MethodGet, "/v1/members", policy.PermMembersView)

	g := New(sessions, policy.NewEngine(nil), csrfGuard, registry)
	res := g.Authorize(context.Background(), Request{SessionID: "admin-sess", Method: http.MethodGet, Path: "/v1/members"})
	if res.Verdict != VerdictForbidden {
		t.Fatalf("unavailable policy must deny, got %v", res.Verdict)
	}
}

func TestDenyMessagesAreGeneric(t *testing.T) {
	sensitive := []string{"name", "amount", "member", "donation", "beneficiary", "email", "phone"}
	for _, v := range []Verdict{VerdictUnauthenticated, VerdictForbidden, VerdictCSRFRejected} {
		msg := strings.ToLower(v.Message())
		for _, field := range sensitive {
			if strings.Contains(msg, field) {
				t.Fatalf("verdict %v message %q leaks field %q", v, msg, field)
			}
		}
	}
}
