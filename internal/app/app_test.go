package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/sandeepkv93/chat-session-client/internal/authapi"
	"github.com/sandeepkv93/chat-session-client/internal/authapi/authapitest"
	"github.com/sandeepkv93/chat-session-client/internal/config"
	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/realtime"
	"github.com/sandeepkv93/chat-session-client/internal/service"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

func TestNewAssignsDependenciesAndTimeouts(t *testing.T) {
	cfg := &config.Config{ShutdownTimeout: 7 * time.Second}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: ":3000", ReadHeaderTimeout: time.Second}
	store := storage.NewMemoryStore()

	a := New(cfg, logger, server, nil, store, nil, nil)
	if a.Config != cfg || a.Logger != logger || a.Server != server || a.Store != store {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.ShutdownTimeout != 7*time.Second {
		t.Fatalf("expected shutdown timeout copied from config, got %s", a.ShutdownTimeout)
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	a := New(&config.Config{}, logger, nil, nil, store, nil, nil)

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if _, _, err := store.Get(context.Background(), storage.KeyUser); !errors.Is(err, storage.ErrStoreClosed) {
		t.Fatalf("expected store to be closed, got %v", err)
	}
	if a.shutdownTimeout() != 10*time.Second {
		t.Fatalf("expected default shutdown timeout, got %s", a.shutdownTimeout())
	}
}

func TestLoggingNavigator(t *testing.T) {
	var buf bytes.Buffer
	nav := NewLoggingNavigator(slog.New(slog.NewTextHandler(&buf, nil)))
	nav.Push("/")
	nav.Replace("/?redirect=%2Fchat")
	out := buf.String()
	if !strings.Contains(out, "mode=push") || !strings.Contains(out, "mode=replace") {
		t.Fatalf("expected both navigation modes logged, got %q", out)
	}
}

func newRealtimeServer(t *testing.T, sessions chan<- string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		sessions <- r.Header.Get(authapi.HeaderSessionID)
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunRestoresSessionAndConnectsRealtime(t *testing.T) {
	backend, api := authapitest.NewServer(t)
	backend.AddUser("Ada", "ada@example.com", "pw")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := authapi.NewClient(api.URL, 5*time.Second)
	store := storage.NewMemoryStore()

	mgr, err := service.NewSessionManager(service.SessionDependencies{
		Auth:      client,
		Verifier:  client,
		Store:     store,
		Navigator: NewLoggingNavigator(logger),
	}, service.SessionConfig{}, service.WithLogger(logger))
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	rec, err := mgr.Login(context.Background(), domain.Credentials{Email: "ada@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	sessions := make(chan string, 1)
	rt := realtime.NewClient(newRealtimeServer(t, sessions), mgr.TokenSource(), realtime.WithLogger(logger))
	mgr.AttachRealtime(rt)

	server := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	a := New(&config.Config{ShutdownTimeout: 5 * time.Second}, logger, server, mgr, store, rt, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case sid := <-sessions:
		if sid != rec.SessionID {
			t.Fatalf("expected realtime dial with session %q, got %q", rec.SessionID, sid)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("realtime connection was not established")
	}

	snap := mgr.Snapshot()
	if !snap.IsAuthenticated || snap.IsLoading {
		t.Fatalf("expected restored session, got %+v", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	if rt.Connected() {
		t.Fatal("expected realtime to be disconnected on shutdown")
	}
}
