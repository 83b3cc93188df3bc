package di

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/config"
	"github.com/sandeepkv93/chat-session-client/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		APIBaseURL:          "http://127.0.0.1:1",
		HTTPClientTimeout:   time.Second,
		SessionStore:        config.StoreMemory,
		SessionIdleTimeout:  2 * time.Hour,
		IdleCheckInterval:   5 * time.Minute,
		VerifyInterval:      5 * time.Minute,
		LandingRoute:        "/",
		HomeRoute:           "/chat",
		PublicRoutes:        []string{"/", "/register", "/login"},
		ViewHTTPAddr:        "127.0.0.1:0",
		SessionRateLimitRPM: 60,
		ShutdownTimeout:     time.Second,
		LogLevel:            "error",
		OTELServiceName:     "chat-session-client-test",
	}
}

func TestInitializeSessionWiresManagerOverStore(t *testing.T) {
	ctx := context.Background()
	s, err := InitializeSession(ctx, testConfig())
	if err != nil {
		t.Fatalf("initialize session: %v", err)
	}
	s.Manager.Initialize(ctx)
	if snap := s.Manager.Snapshot(); snap.IsAuthenticated || snap.IsLoading {
		t.Fatalf("expected empty settled session, got %+v", snap)
	}
	rec, err := s.Manager.UpdateUser(ctx, map[string]any{"token": "tok", "sessionId": "sid", "name": "Ada"})
	if err != nil || rec.SessionID != "sid" {
		t.Fatalf("update user: rec=%+v err=%v", rec, err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestInitializeAppBuildsServer(t *testing.T) {
	a, err := InitializeApp(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("initialize app: %v", err)
	}
	if a.Server.Addr != "127.0.0.1:0" || a.Server.Handler == nil {
		t.Fatalf("unexpected server %+v", a.Server)
	}
	if a.Realtime != nil {
		t.Fatal("expected no realtime client without REALTIME_URL")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestProvideRealtimeAttachesClient(t *testing.T) {
	cfg := testConfig()
	cfg.RealtimeURL = "ws://127.0.0.1:1/ws"
	s, err := InitializeSession(context.Background(), cfg)
	if err != nil {
		t.Fatalf("initialize session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	rt := provideRealtime(cfg, s.Manager, s.Logger)
	if rt == nil {
		t.Fatal("expected realtime client")
	}
	if err := rt.Connect(context.Background()); err == nil {
		t.Fatal("expected connect without a session to fail")
	} else if !errors.Is(err, domain.ErrNoCredential) {
		t.Fatalf("expected missing credential error, got %v", err)
	}
}

func TestProvidePolicyCopiesRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.HomeRoute = "/rooms"
	p := providePolicy(cfg)
	if p.LandingRoute != "/" || p.HomeRoute != "/rooms" || len(p.PublicRoutes) != 3 {
		t.Fatalf("unexpected policy %+v", p)
	}
}
