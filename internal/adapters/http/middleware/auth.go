package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"chapel/internal/domain/account"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const identityContextKey contextKey = "identity"

// SessionCookieName names the cookie carrying the session token.
const SessionCookieName = "chapel_session"

// DefaultSessionTTL is used when a store is built with a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// Session represents an authenticated browser session.
type Session struct {
	Identity  account.Identity
	CreatedAt time.Time
}

// SessionStore is an in-memory session store.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the session lifetime.
func (ss *SessionStore) TTL() time.Duration {
	return ss.ttl
}

// Create stores a new session and returns the token.
// PRE: identity.ID is non-empty
// POST: Session is stored, token is returned
func (ss *SessionStore) Create(identity account.Identity) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = Session{Identity: identity, CreatedAt: ss.now()}
	return token, nil
}

// Get retrieves a session by token. Expired sessions are removed.
// PRE: token is non-empty
// POST: Returns session if valid and not expired
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	session, ok := ss.sessions[token]
	if !ok {
		return Session{}, false
	}
	if ss.now().Sub(session.CreatedAt) > ss.ttl {
		delete(ss.sessions, token)
		return Session{}, false
	}
	return session, true
}

// Delete removes a session by token.
// PRE: token is non-empty
// POST: Session with given token is removed
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (account.Identity, error)
}

// Auth returns middleware that resolves the identity from the session cookie
// or, failing that, an Authorization: Bearer token.
// It does not block unauthenticated requests; RequireAuth and RequireRole do.
func Auth(sessions *SessionStore, tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := identityFromRequest(r, sessions, tokens); ok {
				r = r.WithContext(ContextWithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromRequest(r *http.Request, sessions *SessionStore, tokens TokenVerifier) (account.Identity, bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" && sessions != nil {
		if session, ok := sessions.Get(cookie.Value); ok {
			return session.Identity, true
		}
	}
	bearer, ok := BearerToken(r)
	if !ok || tokens == nil {
		return account.Identity{}, false
	}
	identity, err := tokens.Verify(bearer)
	if err != nil {
		slog.Debug("auth_event", "event", "bearer_rejected", "error", err)
		return account.Identity{}, false
	}
	return identity, true
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth returns middleware that blocks unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			WriteJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that blocks requests from users without one of the specified roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !roleSet[identity.Role] {
				slog.Info("auth_event", "event", "forbidden", "account_id", identity.ID, "role", identity.Role, "path", r.URL.Path)
				WriteJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext extracts the identity from the request context.
func IdentityFromContext(ctx context.Context) (account.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(account.Identity)
	return identity, ok
}

// ContextWithIdentity returns a context with the given identity set.
func ContextWithIdentity(ctx context.Context, identity account.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// SetSessionCookie sets the session cookie on the response.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
