package web

import (
	"log/slog"
	"net/http"

	"chapel/internal/adapters/http/middleware"
	"chapel/internal/application/orchestrators"
)

// handleLogin handles POST /api/login
// It sets a session cookie for browsers and returns a bearer token for API clients.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := strictDecode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, orchestrators.LoginDeps{
		AccountStore: s.stores.AccountStore,
		Now:          s.opts.Now,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.sessions.Create(identity)
	if err != nil {
		internalError(w, r, err)
		return
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		internalError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, session, s.sessions.TTL(), s.opts.SecureCookies)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: s.opts.Now().Add(s.sessions.TTL()).UTC(),
		Email:     identity.Email,
		Role:      identity.Role,
	})
}

// handleLogout handles POST /api/logout
// Bearer tokens are stateless and simply expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		s.sessions.Delete(cookie.Value)
	}
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		slog.Info("auth_event", "event", "logout", "account_id", id.ID)
	}
	middleware.ClearSessionCookie(w, s.opts.SecureCookies)
	w.WriteHeader(http.StatusNoContent)
}
