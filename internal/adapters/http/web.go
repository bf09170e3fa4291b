package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"chapel/internal/adapters/http/middleware"
	accountStore "chapel/internal/adapters/storage/account"
	attendanceStore "chapel/internal/adapters/storage/attendance"
	memberStore "chapel/internal/adapters/storage/member"
	"chapel/internal/domain/account"
	"chapel/internal/metrics"
)

// Stores holds all storage dependencies.
type Stores struct {
	AccountStore    accountStore.Store
	MemberStore     memberStore.Store
	AttendanceStore attendanceStore.Store
}

// Options configures the HTTP surface.
type Options struct {
	CSRFKey       []byte // 32 bytes
	JWTKey        []byte
	SessionTTL    time.Duration
	SecureCookies bool
	RateLimit     middleware.RateLimiterConfig
	SlowRequest   time.Duration
	Location      *time.Location   // analytics "today"; defaults to UTC
	Now           func() time.Time // defaults to time.Now
	Metrics       *metrics.Collector
	Gatherer      prometheus.Gatherer // nil disables /metrics
	Ping          func(ctx context.Context) error
}

// Server is the attendance API.
type Server struct {
	stores   *Stores
	opts     Options
	sessions *middleware.SessionStore
	tokens   *middleware.Tokens
	limiter  *middleware.RateLimiter
	recorder metrics.Recorder
	handler  http.Handler
}

// NewServer wires HTTP handlers for the app. Call Close to stop background work.
func NewServer(s *Stores, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RateLimit.Rate == 0 {
		opts.RateLimit = middleware.DefaultRateLimiterConfig()
	}

	srv := &Server{
		stores:   s,
		opts:     opts,
		sessions: middleware.NewSessionStore(opts.SessionTTL),
		tokens:   middleware.NewTokens(opts.JWTKey, opts.SessionTTL, opts.Now),
		limiter:  middleware.NewRateLimiter(opts.RateLimit),
		recorder: metrics.Nop{},
	}
	var observer middleware.RequestObserver
	if opts.Metrics != nil {
		srv.recorder = opts.Metrics
		observer = opts.Metrics
	}
	srv.handler = srv.routes(observer)
	return srv
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the rate limiter cleanup loop.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes builds the chi router.
// Middleware order: Timing -> Recovery -> SecurityHeaders -> RateLimit, then
// CSRF -> Auth on the API group.
func (s *Server) routes(observer middleware.RequestObserver) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Timing(observer, s.opts.SlowRequest))
	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RateLimit(s.limiter))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.opts.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF(s.opts.CSRFKey, s.opts.SecureCookies))
		r.Use(middleware.Auth(s.sessions, s.tokens))

		r.Post("/api/login", s.handleLogin)
		r.Post("/api/logout", s.handleLogout)

		// Any authenticated identity.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/api/attendance/history", s.handleHistory)
			r.Route("/api/me/attendance", func(r chi.Router) {
				r.Get("/summary", s.handleMySummary)
				r.Get("/streaks", s.handleMyStreaks)
				r.Get("/months", s.handleMyMonths)
				r.Get("/heatmap", s.handleMyHeatmap)
				r.Get("/day", s.handleMyDay)
			})
		})

		// Recording is restricted to staff.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(account.RoleAdmin, account.RoleStaff))
			r.Get("/api/attendance/roster", s.handleGetRoster)
			r.Put("/api/attendance/roster", s.handleSaveRoster)
			r.Post("/api/attendance/relocate", s.handleRelocate)
		})
	})

	return r
}
