package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	authmw "github.com/MrEthical07/authcore/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	Logger *zap.Logger
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// Membership enables X-Org-ID scoping on guarded routes.
	Membership authmw.MembershipLookup
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

// Handler serves the authorization server endpoints.
type Handler struct {
	engine *authcore.Engine
	logger *zap.Logger
	opts   Options
}

// NewHandler creates a Handler around engine.
func NewHandler(engine *authcore.Engine, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, logger: logger, opts: opts}
}

// Routes returns a router with every endpoint registered.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(authmw.ClientIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)

	h.OAuthRoutes(r)
	h.AuthRoutes(r)
	h.LoginRoutes(r)

	r.Get("/healthz", h.HealthHandler)
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}
	return r
}

// OAuthRoutes registers the authorize and token endpoints.
func (h *Handler) OAuthRoutes(r chi.Router) {
	_, def := h.engine.RateLimits()
	r.Get("/oauth/authorize", h.AuthorizeHandler)
	r.With(authmw.RateLimit(h.engine, def)).Post("/oauth/token", h.TokenHandler)
}

// AuthRoutes registers the JSON token endpoints and the guarded profile
// route.
func (h *Handler) AuthRoutes(r chi.Router) {
	strict, def := h.engine.RateLimits()
	r.With(authmw.RateLimit(h.engine, strict)).Post("/auth/login", h.JSONLoginHandler)
	r.With(authmw.RateLimit(h.engine, def)).Post("/auth/refresh", h.RefreshHandler)
	r.Post("/auth/logout", h.LogoutHandler)

	r.Group(func(r chi.Router) {
		r.Use(authmw.Guard(h.engine))
		if h.opts.Membership != nil {
			r.Use(authmw.OrgScope(h.opts.Membership))
		}
		r.Get("/auth/me", h.MeHandler)
	})
}

// LoginRoutes registers the HTML login form.
func (h *Handler) LoginRoutes(r chi.Router) {
	strict, _ := h.engine.RateLimits()
	loginPath := h.engine.Config().Security.LoginPath
	r.Get(loginPath, h.LoginFormHandler)
	r.With(authmw.RateLimit(h.engine, strict)).Post(loginPath, h.LoginSubmitHandler)
}

// HealthHandler reports liveness.
func (h *Handler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MeHandler returns the authenticated principal.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := authcore.PrincipalFromContext(r.Context())
	if !ok {
		authmw.WriteError(w, authcore.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("ip", authcore.ClientIPFromContext(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
