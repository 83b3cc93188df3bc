package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/chat-session-client/internal/guard"
	"github.com/sandeepkv93/chat-session-client/internal/http/handler"
	"github.com/sandeepkv93/chat-session-client/internal/http/middleware"
	"github.com/sandeepkv93/chat-session-client/internal/http/response"
)

type Dependencies struct {
	Manager             handler.SessionManager
	Policy              guard.Policy
	Logger              *slog.Logger
	SessionRateLimitRPM int
	SessionRateLimiter  SessionRateLimiterFunc
	EnableOTelHTTP      bool
}

type SessionRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := handler.NewSessionHandler(dep.Manager, dep.Policy, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	sessionLimiter := dep.SessionRateLimiter
	if sessionLimiter == nil {
		rpm := dep.SessionRateLimitRPM
		if rpm <= 0 {
			rpm = 60
		}
		sessionLimiter = middleware.NewRateLimiter(rpm, time.Minute).Middleware()
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	requireSession := middleware.RequireSession(dep.Manager, dep.Policy)
	requireGuest := middleware.RequireGuest(dep.Manager, dep.Policy)

	r.Get(dep.Policy.LandingRoute, h.Landing)
	r.Group(func(r chi.Router) {
		r.Use(requireGuest)
		r.Get("/login", h.LoginPage)
		r.Get("/register", h.RegisterPage)
		r.With(middleware.CSRFMiddleware, sessionLimiter).Post("/login", h.Login)
		r.With(middleware.CSRFMiddleware, sessionLimiter).Post("/register", h.Register)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get(dep.Policy.HomeRoute, h.Chat)
		r.Get("/profile", h.ProfilePage)
		r.With(middleware.CSRFMiddleware, sessionLimiter).Post("/profile", h.UpdateProfile)
	})
	r.With(middleware.CSRFMiddleware).Post("/logout", h.LogoutForm)

	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.Status)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CSRFMiddleware)
			r.Use(sessionLimiter)
			r.Post("/verify", h.Verify)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
		})
	})

	var out http.Handler = r
	if dep.EnableOTelHTTP {
		out = otelhttp.NewHandler(r, "http.server")
	}
	return out
}
