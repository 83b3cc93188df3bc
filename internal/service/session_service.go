package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/observability"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

const (
	DefaultIdleTimeout       = 2 * time.Hour
	DefaultIdleCheckInterval = 5 * time.Minute
	DefaultVerifyThrottle    = 5 * time.Minute
	DefaultLandingRoute      = "/"
)

type SessionDependencies struct {
	Auth      AuthService
	Verifier  TokenVerifier
	Store     storage.Store
	Realtime  RealtimeConn
	Navigator Navigator
}

type SessionConfig struct {
	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration
	VerifyThrottle    time.Duration
	LandingRoute      string
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.IdleCheckInterval <= 0 {
		c.IdleCheckInterval = DefaultIdleCheckInterval
	}
	if c.VerifyThrottle <= 0 {
		c.VerifyThrottle = DefaultVerifyThrottle
	}
	if c.LandingRoute == "" {
		c.LandingRoute = DefaultLandingRoute
	}
	return c
}

type SessionManagerOption func(*SessionManager)

func WithNowFunc(now func() time.Time) SessionManagerOption {
	return func(m *SessionManager) { m.now = now }
}

func WithLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) { m.logger = logger }
}

// SessionManager owns the client-side session: the persisted record, its
// idle timeout, credential verification and the derived view status.
type SessionManager struct {
	auth     AuthService
	verifier TokenVerifier
	store    storage.Store
	realtime RealtimeConn
	nav      Navigator
	cfg      SessionConfig
	now      func() time.Time
	logger   *slog.Logger

	// storeMu serialises every read-modify-write of the stored record with
	// the matching in-memory change. Taken before mu, never after.
	storeMu sync.Mutex

	mu          sync.Mutex
	current     *domain.SessionRecord
	state       State
	loading     bool
	closed      bool
	idleCancel  context.CancelFunc
	idleWG      sync.WaitGroup
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

func NewSessionManager(deps SessionDependencies, cfg SessionConfig, opts ...SessionManagerOption) (*SessionManager, error) {
	var errs []error
	if deps.Auth == nil {
		errs = append(errs, errors.New("auth service is required"))
	}
	if deps.Verifier == nil {
		errs = append(errs, errors.New("token verifier is required"))
	}
	if deps.Store == nil {
		errs = append(errs, errors.New("session store is required"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("new session manager: %w", errors.Join(errs...))
	}
	m := &SessionManager{
		auth:        deps.Auth,
		verifier:    deps.Verifier,
		store:       deps.Store,
		realtime:    deps.Realtime,
		nav:         deps.Navigator,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
		logger:      slog.Default(),
		loading:     true,
		subscribers: make(map[int]func(Snapshot)),
	}
	if m.realtime == nil {
		m.realtime = noopRealtime{}
	}
	if m.nav == nil {
		m.nav = noopNavigator{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Initialize performs the initial load. The loading flag is cleared on the
// first call whatever the outcome.
func (m *SessionManager) Initialize(ctx context.Context) {
	m.storeMu.Lock()
	rec, err := m.loadFromStorageLocked(ctx)
	if err != nil {
		m.logger.Error("load session from storage", "error", err)
	}

	m.mu.Lock()
	m.current = rec
	m.loading = false
	if rec != nil {
		m.state = StateActive
		m.startIdleLoopLocked()
	} else {
		m.state = StateNoSession
		m.stopIdleLoopLocked()
	}
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	m.storeMu.Unlock()
	m.notify(snap, subs)

	if rec != nil {
		m.logger.Info("session restored", "session_id", rec.SessionID)
	} else {
		m.logger.Debug("no stored session")
	}
}

func (m *SessionManager) Login(ctx context.Context, creds domain.Credentials) (*domain.SessionRecord, error) {
	ctx, span := observability.StartSpan(ctx, "session.login")
	defer span.End()

	rec, err := m.auth.Login(ctx, creds)
	if err != nil {
		observability.RecordSessionLogin(ctx, "error")
		return nil, err
	}
	saved, err := m.saveUser(ctx, rec)
	if err != nil {
		observability.RecordSessionLogin(ctx, "error")
		return nil, err
	}
	observability.RecordSessionLogin(ctx, "success")
	observability.Audit(ctx, m.logger, "session.login", "session_id", saved.SessionID)
	return saved.Clone(), nil
}

// Logout notifies the remote service best-effort and then always clears the
// local session and navigates to the landing route.
func (m *SessionManager) Logout(ctx context.Context) {
	ctx, span := observability.StartSpan(ctx, "session.logout")
	defer span.End()

	m.mu.Lock()
	cur := m.current.Clone()
	m.mu.Unlock()

	status := "success"
	if cur != nil {
		if err := m.auth.Logout(ctx, cur.Token, cur.SessionID); err != nil {
			status = "notify_error"
			m.logger.Warn("logout notify failed", "error", err)
		}
	} else {
		status = "no_session"
	}

	m.realtimeConn().Disconnect()
	if err := m.clearUser(ctx); err != nil {
		m.logger.Error("logout storage cleanup failed", "error", err)
	}
	observability.RecordSessionLogout(ctx, status)
	observability.Audit(ctx, m.logger, "session.logout", "status", status)
	m.nav.Push(m.cfg.LandingRoute)
}

func (m *SessionManager) Register(ctx context.Context, reg domain.Registration) (map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "session.register")
	defer span.End()
	return m.auth.Register(ctx, reg)
}

// UpdateProfile sends updates to the remote profile endpoint and merges the
// returned fields into the held record. Without a session it does nothing.
func (m *SessionManager) UpdateProfile(ctx context.Context, updates map[string]any) (*domain.SessionRecord, error) {
	m.mu.Lock()
	cur := m.current.Clone()
	m.mu.Unlock()
	if cur == nil {
		return nil, nil
	}

	ctx, span := observability.StartSpan(ctx, "session.update_profile")
	defer span.End()

	fields, err := m.auth.UpdateProfile(ctx, updates, cur.Token, cur.SessionID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	latest := m.current.Clone()
	m.mu.Unlock()
	if latest == nil || latest.SessionID != cur.SessionID {
		return nil, domain.ErrNoCredential
	}
	latest.Merge(fields)
	latest.Token = cur.Token
	latest.SessionID = cur.SessionID
	saved, err := m.saveUser(ctx, latest)
	if err != nil {
		return nil, err
	}
	return saved.Clone(), nil
}

// UpdateUser merges fields into the held record without any network call.
// A nil map clears the local session only: the remote service is not told,
// the real-time connection is left alone and no navigation happens.
func (m *SessionManager) UpdateUser(ctx context.Context, fields map[string]any) (*domain.SessionRecord, error) {
	if fields == nil {
		return nil, m.clearUser(ctx)
	}
	m.mu.Lock()
	next := m.current.Clone()
	m.mu.Unlock()
	if next == nil {
		next = domain.NewSessionRecord("", "", nil)
	}
	next.Merge(fields)
	saved, err := m.saveUser(ctx, next)
	if err != nil {
		return nil, err
	}
	return saved.Clone(), nil
}

func (m *SessionManager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, _ := m.snapshotLocked()
	return snap
}

// Subscribe registers fn for every status change and returns the function
// that removes it. fn is called with the manager unlocked.
func (m *SessionManager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// AttachRealtime replaces the connection torn down when the session ends.
// Hosts call it once the realtime client, which itself reads credentials
// from the manager, has been built.
func (m *SessionManager) AttachRealtime(conn RealtimeConn) {
	if conn == nil {
		conn = noopRealtime{}
	}
	m.mu.Lock()
	m.realtime = conn
	m.mu.Unlock()
}

func (m *SessionManager) realtimeConn() RealtimeConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.realtime
}

// Close stops the idle check. The stored session is left in place.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.stopIdleLoopLocked()
	m.mu.Unlock()
	m.idleWG.Wait()
	return nil
}

// loadFromStorageLocked reads, validates and touches the stored record.
// A missing, undecodable or idle-expired record yields no session and the
// entry is removed. A store that cannot be read or written returns an error
// and leaves the entry alone. Callers hold m.storeMu.
func (m *SessionManager) loadFromStorageLocked(ctx context.Context) (*domain.SessionRecord, error) {
	raw, ok, err := m.store.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read stored session: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.logger.Error("decode stored session", "error", err)
		m.removeStored(ctx)
		return nil, nil
	}
	now := m.now()
	if rec.Expired(now, m.cfg.IdleTimeout) {
		m.logger.Info("stored session idle-expired", "session_id", rec.SessionID)
		m.removeStored(ctx)
		return nil, nil
	}

	rec.Touch(now)
	if err := m.persist(ctx, &rec); err != nil {
		return nil, fmt.Errorf("persist touched session: %w", err)
	}
	return &rec, nil
}

func (m *SessionManager) removeStored(ctx context.Context) {
	if err := m.store.Remove(ctx, storage.KeyUser); err != nil {
		m.logger.Error("remove stored session", "error", err)
	}
}

func (m *SessionManager) persist(ctx context.Context, rec *domain.SessionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyUser, string(payload)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// saveUser touches and persists rec, then makes it the held record.
func (m *SessionManager) saveUser(ctx context.Context, rec *domain.SessionRecord) (*domain.SessionRecord, error) {
	next := rec.Clone()

	m.storeMu.Lock()
	next.Touch(m.now())
	if err := m.persist(ctx, next); err != nil {
		m.storeMu.Unlock()
		return nil, err
	}
	m.mu.Lock()
	m.current = next
	m.state = StateActive
	m.startIdleLoopLocked()
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	m.storeMu.Unlock()

	m.notify(snap, subs)
	return next, nil
}

// clearUser deletes the record from storage and memory. Memory is cleared
// even if storage fails.
func (m *SessionManager) clearUser(ctx context.Context) error {
	m.storeMu.Lock()
	err := m.store.Remove(ctx, storage.KeyUser)
	_, snap, subs := m.dropSessionLocked()
	m.storeMu.Unlock()
	m.notify(snap, subs)
	return err
}

// dropSessionLocked clears the in-memory session and reports whether one
// was held. Callers hold m.storeMu and notify with the returned snapshot.
func (m *SessionManager) dropSessionLocked() (bool, Snapshot, []func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.current != nil
	m.current = nil
	m.state = StateNoSession
	m.stopIdleLoopLocked()
	snap, subs := m.snapshotLocked()
	return held, snap, subs
}

func (m *SessionManager) setState(s State) {
	m.mu.Lock()
	if m.state == s || (m.current == nil && s != StateNoSession) {
		m.mu.Unlock()
		return
	}
	m.state = s
	snap, subs := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap, subs)
}

func (m *SessionManager) snapshotLocked() (Snapshot, []func(Snapshot)) {
	snap := Snapshot{
		User:            m.current.Clone(),
		IsAuthenticated: m.current != nil,
		IsLoading:       m.loading,
		State:           m.state,
	}
	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	return snap, subs
}

func (m *SessionManager) notify(snap Snapshot, subs []func(Snapshot)) {
	for _, fn := range subs {
		fn(snap)
	}
}
