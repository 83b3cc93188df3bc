package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAuth struct {
	loginFn   func(domain.Credentials) (*domain.SessionRecord, error)
	logoutErr error
	profileFn func(map[string]any) (map[string]any, error)

	logoutCalls  atomic.Int64
	profileCalls atomic.Int64
	lastLogout   [2]string
}

func (f *fakeAuth) Login(_ context.Context, creds domain.Credentials) (*domain.SessionRecord, error) {
	if f.loginFn != nil {
		return f.loginFn(creds)
	}
	return domain.NewSessionRecord("tok-1", "sid-1", map[string]any{"name": "Alice", "email": creds.Email}), nil
}

func (f *fakeAuth) Logout(_ context.Context, token, sessionID string) error {
	f.logoutCalls.Add(1)
	f.lastLogout = [2]string{token, sessionID}
	return f.logoutErr
}

func (f *fakeAuth) Register(_ context.Context, reg domain.Registration) (map[string]any, error) {
	return map[string]any{"name": reg.Name, "email": reg.Email}, nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, updates map[string]any, _, _ string) (map[string]any, error) {
	f.profileCalls.Add(1)
	if f.profileFn != nil {
		return f.profileFn(updates)
	}
	return updates, nil
}

type fakeVerifier struct {
	verifyFn  func(token, sessionID string) (*domain.VerifyResult, error)
	refreshFn func(token, sessionID string) (*domain.RefreshResult, error)

	verifyCalls  atomic.Int64
	refreshCalls atomic.Int64
}

func (f *fakeVerifier) VerifyToken(_ context.Context, token, sessionID string) (*domain.VerifyResult, error) {
	f.verifyCalls.Add(1)
	if f.verifyFn != nil {
		return f.verifyFn(token, sessionID)
	}
	return &domain.VerifyResult{Success: true}, nil
}

func (f *fakeVerifier) RefreshToken(_ context.Context, token, sessionID string) (*domain.RefreshResult, error) {
	f.refreshCalls.Add(1)
	if f.refreshFn != nil {
		return f.refreshFn(token, sessionID)
	}
	return &domain.RefreshResult{Success: true, Token: token + "-r"}, nil
}

type fakeRealtime struct {
	disconnects atomic.Int64
}

func (f *fakeRealtime) Disconnect() { f.disconnects.Add(1) }

type navEvent struct {
	kind string
	path string
}

type fakeNavigator struct {
	mu     sync.Mutex
	events []navEvent
	signal chan navEvent
}

func newFakeNavigator() *fakeNavigator {
	return &fakeNavigator{signal: make(chan navEvent, 16)}
}

func (n *fakeNavigator) Push(path string)    { n.record("push", path) }
func (n *fakeNavigator) Replace(path string) { n.record("replace", path) }

func (n *fakeNavigator) record(kind, path string) {
	ev := navEvent{kind: kind, path: path}
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	select {
	case n.signal <- ev:
	default:
	}
}

func (n *fakeNavigator) Events() []navEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navEvent(nil), n.events...)
}

// gatedStore parks the first write of the user record after arm until
// release is called, simulating a slow network store.
type gatedStore struct {
	storage.Store

	mu      sync.Mutex
	armed   bool
	blocked chan struct{}
	gate    chan struct{}
}

func newGatedStore(inner storage.Store) *gatedStore {
	return &gatedStore{Store: inner, blocked: make(chan struct{}), gate: make(chan struct{})}
}

func (s *gatedStore) arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

func (s *gatedStore) release() { close(s.gate) }

func (s *gatedStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	hold := s.armed && key == storage.KeyUser
	if hold {
		s.armed = false
	}
	s.mu.Unlock()
	if hold {
		close(s.blocked)
		<-s.gate
	}
	return s.Store.Set(ctx, key, value)
}

// flakyStore fails every read while down is set.
type flakyStore struct {
	storage.Store
	down atomic.Bool
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.down.Load() {
		return "", false, errors.New("connection refused")
	}
	return s.Store.Get(ctx, key)
}

type managerFixture struct {
	m        *SessionManager
	auth     *fakeAuth
	verifier *fakeVerifier
	store    *storage.MemoryStore
	realtime *fakeRealtime
	nav      *fakeNavigator
	clock    *testClock
}

func newManagerFixture(t *testing.T, cfg SessionConfig) *managerFixture {
	t.Helper()
	return newManagerFixtureWithStore(t, cfg, nil)
}

// newManagerFixtureWithStore lets wrap decorate the memory store the manager
// sees. f.store stays the undecorated store for assertions.
func newManagerFixtureWithStore(t *testing.T, cfg SessionConfig, wrap func(storage.Store) storage.Store) *managerFixture {
	t.Helper()
	f := &managerFixture{
		auth:     &fakeAuth{},
		verifier: &fakeVerifier{},
		store:    storage.NewMemoryStore(),
		realtime: &fakeRealtime{},
		nav:      newFakeNavigator(),
		clock:    newTestClock(),
	}
	var store storage.Store = f.store
	if wrap != nil {
		store = wrap(f.store)
	}
	m, err := NewSessionManager(SessionDependencies{
		Auth:      f.auth,
		Verifier:  f.verifier,
		Store:     store,
		Realtime:  f.realtime,
		Navigator: f.nav,
	}, cfg,
		WithNowFunc(f.clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	f.m = m
	return f
}

func (f *managerFixture) storeRecord(t *testing.T, rec *domain.SessionRecord) {
	t.Helper()
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if err := f.store.Set(context.Background(), storage.KeyUser, string(payload)); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func (f *managerFixture) storedRecord(t *testing.T) (*domain.SessionRecord, bool) {
	t.Helper()
	raw, ok, err := f.store.Get(context.Background(), storage.KeyUser)
	if err != nil {
		t.Fatalf("read stored record: %v", err)
	}
	if !ok {
		return nil, false
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decode stored record: %v", err)
	}
	return &rec, true
}

func (f *managerFixture) login(t *testing.T) *domain.SessionRecord {
	t.Helper()
	f.m.Initialize(context.Background())
	rec, err := f.m.Login(context.Background(), domain.Credentials{Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return rec
}
