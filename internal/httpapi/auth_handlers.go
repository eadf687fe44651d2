package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/kafkasder-git/panel/internal/audit"
	"github.com/kafkasder-git/panel/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Roles           []string  `json:"roles"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := a.csrf.Issue(sess.ID)
	if err != nil {
		a.sessions.Logout(r.Context(), sess.ID)
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}

	a.setSessionCookie(w, sess)
	w.Header().Set(csrfHeader, token)

	ctx := audit.WithRequestID(
		session.ContextWithSession(r.Context(), sess),
		RequestIDFromContext(r.Context()),
	)
	_ = audit.LogEvent(ctx, "auth.login", map[string]any{"email": req.Email})

	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	sess, err := a.sessions.Refresh(r.Context(), a.sessionID(r))
	if err != nil {
		a.clearSessionCookie(w)
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	// Re-issue the cookie so its expiry tracks the rotated refresh token.
	a.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	if id := a.sessionID(r); id != "" {
		a.sessions.Logout(r.Context(), id)
		ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
		_ = audit.LogEvent(ctx, "auth.logout", map[string]any{"session_id": id})
	}
	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	sess, err := a.sessions.Current(r.Context(), a.sessionID(r))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func sessionView(sess *session.Session) sessionResponse {
	return sessionResponse{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Roles:           sess.Roles,
		AccessExpiresAt: sess.AccessExpiresAt,
	}
}

func (a *API) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.RefreshExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
