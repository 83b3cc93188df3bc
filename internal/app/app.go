package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/chat-session-client/internal/config"
	"github.com/sandeepkv93/chat-session-client/internal/observability"
	"github.com/sandeepkv93/chat-session-client/internal/service"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

// RealtimeClient is the live connection the host dials while a session is
// held. The manager tears it down when the session ends.
type RealtimeClient interface {
	Connect(ctx context.Context) error
	Connected() bool
	Disconnect()
}

type App struct {
	Config          *config.Config
	Logger          *slog.Logger
	Server          *http.Server
	Manager         *service.SessionManager
	Store           storage.Store
	Realtime        RealtimeClient
	Observability   *observability.Runtime
	ShutdownTimeout time.Duration

	shutdownOnce sync.Once
	shutdownErr  error
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, manager *service.SessionManager, store storage.Store, rt RealtimeClient, runtime *observability.Runtime) *App {
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Manager:         manager,
		Store:           store,
		Realtime:        rt,
		Observability:   runtime,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run restores the stored session, serves the view host and keeps the
// realtime connection up while a session is held. It returns once ctx is
// done and everything has been shut down.
func (a *App) Run(ctx context.Context) error {
	a.Manager.Initialize(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("view host listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve view host: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.watchRealtime(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Shutdown stops the view host and releases the manager, store and
// telemetry providers. The realtime connection is closed but the stored
// session is kept for the next start. Only the first call does any work.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error
		if a.Server != nil {
			if err := a.Server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown view host: %w", err))
			}
		}
		if a.Realtime != nil {
			a.Realtime.Disconnect()
		}
		if a.Manager != nil {
			if err := a.Manager.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close session manager: %w", err))
			}
		}
		if a.Store != nil {
			if err := a.Store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close session store: %w", err))
			}
		}
		if err := a.Observability.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown observability: %w", err))
		}
		a.shutdownErr = errors.Join(errs...)
		a.Logger.Info("shutdown complete", "error", a.shutdownErr)
	})
	return a.shutdownErr
}

func (a *App) shutdownTimeout() time.Duration {
	if a.ShutdownTimeout > 0 {
		return a.ShutdownTimeout
	}
	return 10 * time.Second
}

func (a *App) watchRealtime(ctx context.Context) error {
	if a.Realtime == nil {
		return nil
	}
	updates := make(chan service.Snapshot, 1)
	unsubscribe := a.Manager.Subscribe(func(s service.Snapshot) {
		// keep only the latest snapshot
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	a.syncRealtime(ctx, a.Manager.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			a.syncRealtime(ctx, snap)
		}
	}
}

func (a *App) syncRealtime(ctx context.Context, snap service.Snapshot) {
	if !snap.IsAuthenticated || snap.IsLoading || a.Realtime.Connected() {
		return
	}
	if err := a.Realtime.Connect(ctx); err != nil {
		a.Logger.Warn("realtime connect failed", "error", err)
	}
}
