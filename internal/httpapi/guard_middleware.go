package httpapi

import (
	"net/http"

	"github.com/kafkasder-git/panel/internal/audit"
	"github.com/kafkasder-git/panel/internal/guard"
	"github.com/kafkasder-git/panel/internal/session"
)

// withGuard runs every request through the access guard before the mux sees
// it. Denials are written here with the guard's fixed status and message so
// handlers never have to reason about authentication state.
func (a *API) withGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := guard.Request{
			SessionID: a.sessionID(r),
			Method:    r.Method,
			Path:      r.URL.Path,
			CSRFToken: r.Header.Get(csrfHeader),
		}

		res := a.guard.Authorize(r.Context(), req)
		if res.Verdict != guard.VerdictAllow {
			a.auditDenied(r, req, res.Verdict)
			writeError(w, r, res.Verdict.Status(), res.Verdict.Message())
			return
		}

		if res.RotatedCSRF != "" {
			w.Header().Set(csrfHeader, res.RotatedCSRF)
		}
		if res.Session != nil {
			r = r.WithContext(session.ContextWithSession(r.Context(), res.Session))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) sessionID(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func (a *API) auditDenied(r *http.Request, req guard.Request, v guard.Verdict) {
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	_ = audit.LogEvent(ctx, "access.denied", map[string]any{
		"method":  req.Method,
		"path":    req.Path,
		"verdict": v.String(),
	})
}
