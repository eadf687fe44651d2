// Package guard is the single enforcement point consulted before any
// protected resource is served. It composes the session manager, the
// policy engine and the CSRF guard into one verdict per request; deny
// verdicts never carry resource data.
package guard

import (
	"context"
	"net/http"

	"github.com/kafkasder-git/panel/internal/obs"
	"github.com/kafkasder-git/panel/internal/policy"
	"github.com/kafkasder-git/panel/internal/session"
)

// Verdict is the terminal state of an authorization attempt.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictUnauthenticated
	VerdictForbidden
	VerdictCSRFRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictUnauthenticated:
		return "unauthenticated"
	case VerdictForbidden:
		return "forbidden"
	case VerdictCSRFRejected:
		return "csrf_rejected"
	default:
		return "unknown"
	}
}

// Status maps the verdict to its HTTP status code.
func (v Verdict) Status() int {
	switch v {
	case VerdictAllow:
		return http.StatusOK
	case VerdictUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Message returns the fixed, generic response body for a verdict. The
// text is independent of the resource so denied responses cannot leak
// protected content.
func (v Verdict) Message() string {
	switch v {
	case VerdictAllow:
		return "ok"
	case VerdictUnauthenticated:
		return "authentication required"
	case VerdictCSRFRejected:
		return "invalid or missing request token"
	default:
		return "access denied"
	}
}

// SessionSource resolves the live session for an opaque session id.
// *session.Manager satisfies it.
type SessionSource interface {
	Current(ctx context.Context, sessionID string) (*session.Session, error)
}

// PolicyEngine evaluates a role set against a required permission.
// *policy.Engine satisfies it.
type PolicyEngine interface {
	Evaluate(roleSet []string, permission string) (policy.Decision, error)
}

// CSRFValidator validates and rotates per-session anti-forgery tokens.
// *csrf.Guard satisfies it.
type CSRFValidator interface {
	ValidateAndRotate(sessionID, supplied string) (string, error)
}

// Request describes one navigation or API request to authorize.
type Request struct {
	SessionID string
	Method    string
	Path      string
	CSRFToken string
}

// Result is the outcome of Authorize. Session is set only on Allow;
// RotatedCSRF carries the replacement token after a mutating request
// consumed one.
type Result struct {
	Verdict     Verdict
	Session     *session.Session
	RotatedCSRF string
}

// Guard wires the three decision components behind a resource registry.
type Guard struct {
	sessions  SessionSource
	engine    PolicyEngine
	csrf      CSRFValidator
	resources *Registry
}

// New constructs a Guard.
func New(sessions SessionSource, engine PolicyEngine, csrfValidator CSRFValidator, resources *Registry) *Guard {
	return &Guard{sessions: sessions, engine: engine, csrf: csrfValidator, resources: resources}
}

// Authorize walks the verdict machine for one request: session check,
// permission check, then CSRF check for mutating methods. The first
// failing gate is terminal.
func (g *Guard) Authorize(ctx context.Context, req Request) Result {
	resource, registered := g.resources.Lookup(req.Method, req.Path)
	if registered && resource.Public {
		return g.finish(Result{Verdict: VerdictAllow})
	}

	sess, err := g.sessions.Current(ctx, req.SessionID)
	if err != nil {
		return g.finish(Result{Verdict: VerdictUnauthenticated})
	}

	// Deny-by-default: a resource without a registered permission is
	// never public, regardless of role set.
	if !registered {
		return g.finish(Result{Verdict: VerdictForbidden})
	}
	decision, err := g.engine.Evaluate(sess.Roles, resource.Permission)
	if err != nil || decision != policy.Allow {
		// An unavailable policy table fails closed.
		return g.finish(Result{Verdict: VerdictForbidden})
	}

	if isMutating(req.Method) {
		rotated, err := g.csrf.ValidateAndRotate(sess.ID, req.CSRFToken)
		if err != nil {
			return g.finish(Result{Verdict: VerdictCSRFRejected})
		}
		return g.finish(Result{Verdict: VerdictAllow, Session: sess, RotatedCSRF: rotated})
	}
	return g.finish(Result{Verdict: VerdictAllow, Session: sess})
}

func (g *Guard) finish(res Result) Result {
	obs.CountVerdict(res.Verdict.String())
	return res
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
