package di

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/chat-session-client/internal/app"
	"github.com/sandeepkv93/chat-session-client/internal/authapi"
	"github.com/sandeepkv93/chat-session-client/internal/config"
	"github.com/sandeepkv93/chat-session-client/internal/guard"
	"github.com/sandeepkv93/chat-session-client/internal/http/router"
	"github.com/sandeepkv93/chat-session-client/internal/observability"
	"github.com/sandeepkv93/chat-session-client/internal/realtime"
	"github.com/sandeepkv93/chat-session-client/internal/service"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

// Logging bundles the process logger with its OTEL provider, which is nil
// unless OTEL logs are enabled.
type Logging struct {
	Logger   *slog.Logger
	Provider *sdklog.LoggerProvider
}

// Session is what one-shot sessionctl commands need: a manager over the
// configured store plus the resources to release afterwards.
type Session struct {
	Logger        *slog.Logger
	Manager       *service.SessionManager
	Store         storage.Store
	Observability *observability.Runtime
}

// Close stops the manager and releases the store and telemetry. The stored
// session is left in place.
func (s *Session) Close(ctx context.Context) error {
	return errors.Join(s.Manager.Close(), s.Store.Close(), s.Observability.Shutdown(ctx))
}

var ProviderSet = wire.NewSet(
	provideLogging,
	provideLogger,
	provideObservability,
	provideStore,
	provideAuthClient,
	wire.Bind(new(service.AuthService), new(*authapi.Client)),
	wire.Bind(new(service.TokenVerifier), new(*authapi.Client)),
	provideNavigator,
	provideSessionManager,
)

var AppSet = wire.NewSet(
	ProviderSet,
	providePolicy,
	provideRealtime,
	provideRouter,
	provideHTTPServer,
	app.New,
)

var SessionSet = wire.NewSet(
	ProviderSet,
	wire.Struct(new(Session), "*"),
)

func provideLogging(ctx context.Context, cfg *config.Config) (Logging, error) {
	logger, lp, err := observability.NewLogger(ctx, cfg, os.Stderr)
	if err != nil {
		return Logging{}, err
	}
	slog.SetDefault(logger)
	return Logging{Logger: logger, Provider: lp}, nil
}

func provideLogger(l Logging) *slog.Logger {
	return l.Logger
}

func provideObservability(ctx context.Context, cfg *config.Config, l Logging) (*observability.Runtime, error) {
	rt, err := observability.InitRuntime(ctx, cfg, l.Logger, l.Provider)
	if err != nil {
		return nil, err
	}
	observability.RecordConfigLoad(ctx, cfg.Env, config.ErrorClass(nil))
	return rt, nil
}

func provideStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	return storage.Open(ctx, cfg, logger)
}

func provideAuthClient(cfg *config.Config, logger *slog.Logger) *authapi.Client {
	return authapi.NewClient(cfg.APIBaseURL, cfg.HTTPClientTimeout, authapi.WithLogger(logger))
}

func provideNavigator(logger *slog.Logger) service.Navigator {
	return app.NewLoggingNavigator(logger)
}

func providePolicy(cfg *config.Config) guard.Policy {
	return guard.Policy{
		LandingRoute: cfg.LandingRoute,
		HomeRoute:    cfg.HomeRoute,
		PublicRoutes: cfg.PublicRoutes,
	}
}

func provideSessionManager(cfg *config.Config, auth service.AuthService, verifier service.TokenVerifier, store storage.Store, nav service.Navigator, logger *slog.Logger) (*service.SessionManager, error) {
	return service.NewSessionManager(service.SessionDependencies{
		Auth:      auth,
		Verifier:  verifier,
		Store:     store,
		Navigator: nav,
	}, service.SessionConfig{
		IdleTimeout:       cfg.SessionIdleTimeout,
		IdleCheckInterval: cfg.IdleCheckInterval,
		VerifyThrottle:    cfg.VerifyInterval,
		LandingRoute:      cfg.LandingRoute,
	}, service.WithLogger(logger))
}

// provideRealtime returns nil when no realtime endpoint is configured.
func provideRealtime(cfg *config.Config, manager *service.SessionManager, logger *slog.Logger) app.RealtimeClient {
	if cfg.RealtimeURL == "" {
		return nil
	}
	client := realtime.NewClient(cfg.RealtimeURL, manager.TokenSource(), realtime.WithLogger(logger))
	manager.AttachRealtime(client)
	return client
}

func provideRouter(cfg *config.Config, manager *service.SessionManager, policy guard.Policy, logger *slog.Logger) http.Handler {
	return router.NewRouter(router.Dependencies{
		Manager:             manager,
		Policy:              policy,
		Logger:              logger,
		SessionRateLimitRPM: cfg.SessionRateLimitRPM,
		EnableOTelHTTP:      cfg.OTELHTTPEnabled,
	})
}

func provideHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ViewHTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
