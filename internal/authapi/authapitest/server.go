// Package authapitest provides an in-process chat auth backend for tests and
// local runs of sessionctl.
package authapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/security"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	PathLogin   = "/api/auth/login"
	PathLogout  = "/api/auth/logout"
	PathReg     = "/api/auth/register"
	PathProfile = "/api/users/profile"
	PathVerify  = "/api/auth/verify-token"
	PathRefresh = "/api/auth/refresh-token"
)

// Mode overrides the normal outcome of verify and refresh calls.
type Mode int

const (
	ModeNormal Mode = iota
	ModeReject       // 200 with success=false
	ModeUnauthorized // 401
	ModeServerError  // 500
)

type user struct {
	Profile  map[string]any
	Password string
}

type Backend struct {
	issuer *security.TokenIssuer
	ttl    time.Duration

	mu       sync.Mutex
	users    map[string]*user
	sessions map[string]string
	calls    map[string]*atomic.Int64

	verifyMode  atomic.Int64
	refreshMode atomic.Int64
	logoutFails atomic.Bool
}

func NewBackend() *Backend {
	b := &Backend{
		issuer:   security.NewTokenIssuer("chat-api", "authapitest-secret"),
		ttl:      time.Hour,
		users:    make(map[string]*user),
		sessions: make(map[string]string),
		calls:    make(map[string]*atomic.Int64),
	}
	for _, p := range []string{PathLogin, PathLogout, PathReg, PathProfile, PathVerify, PathRefresh} {
		b.calls[p] = &atomic.Int64{}
	}
	return b
}

// NewServer starts an httptest server for the backend and closes it with
// the test.
func NewServer(t interface {
	Helper()
	Cleanup(func())
}) (*Backend, *httptest.Server) {
	t.Helper()
	b := NewBackend()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *Backend) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count)
	r.Post(PathLogin, b.handleLogin)
	r.Post(PathLogout, b.handleLogout)
	r.Post(PathReg, b.handleRegister)
	r.Put(PathProfile, b.handleProfile)
	r.Post(PathVerify, b.handleVerify)
	r.Post(PathRefresh, b.handleRefresh)
	return r
}

// AddUser seeds an account; email and name are copied into the profile.
func (b *Backend) AddUser(name, email, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = &user{
		Profile:  map[string]any{"_id": uuid.NewString(), "name": name, "email": email},
		Password: password,
	}
}

func (b *Backend) Calls(path string) int {
	if c, ok := b.calls[path]; ok {
		return int(c.Load())
	}
	return 0
}

func (b *Backend) SetVerifyMode(m Mode)  { b.verifyMode.Store(int64(m)) }
func (b *Backend) SetRefreshMode(m Mode) { b.refreshMode.Store(int64(m)) }
func (b *Backend) SetLogoutFails(v bool) { b.logoutFails.Store(v) }

// RevokeAll drops every live session so held credentials stop verifying.
func (b *Backend) RevokeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]string)
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := b.calls[r.URL.Path]; ok {
			c.Add(1)
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid body"})
		return
	}
	b.mu.Lock()
	u, ok := b.users[creds.Email]
	b.mu.Unlock()
	if !ok || u.Password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid email or password"})
		return
	}
	sid := uuid.NewString()
	token, err := b.issuer.Sign(creds.Email, sid, b.ttl)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}
	b.mu.Lock()
	b.sessions[sid] = token
	profile := copyMap(u.Profile)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token, "sessionId": sid, "user": profile})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if b.logoutFails.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "logout unavailable"})
		return
	}
	b.mu.Lock()
	delete(b.sessions, r.Header.Get("x-session-id"))
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "name, email and password are required"})
		return
	}
	b.mu.Lock()
	_, exists := b.users[reg.Email]
	b.mu.Unlock()
	if exists {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": "email already registered"})
		return
	}
	b.AddUser(reg.Name, reg.Email, reg.Password)
	b.mu.Lock()
	profile := copyMap(b.users[reg.Email].Profile)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": profile})
}

func (b *Backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := b.authorize(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "unauthorized"})
		return
	}
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid body"})
		return
	}
	b.mu.Lock()
	u, exists := b.users[claims.Subject]
	if exists {
		for k, v := range updates {
			if k == "email" || k == "_id" {
				continue
			}
			u.Profile[k] = v
		}
	}
	var profile map[string]any
	if exists {
		profile = copyMap(u.Profile)
	}
	b.mu.Unlock()
	if !exists {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": profile})
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	switch Mode(b.verifyMode.Load()) {
	case ModeReject:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "token expired"})
		return
	case ModeUnauthorized:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "unauthorized"})
		return
	case ModeServerError:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "verify unavailable"})
		return
	}
	if _, ok := b.authorize(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	switch Mode(b.refreshMode.Load()) {
	case ModeReject:
		writeJSON(w, http.StatusOK, map[string]any{"success": false})
		return
	case ModeUnauthorized:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "unauthorized"})
		return
	case ModeServerError:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "refresh unavailable"})
		return
	}
	sid := r.Header.Get("x-session-id")
	b.mu.Lock()
	_, live := b.sessions[sid]
	b.mu.Unlock()
	if !live {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "session not found"})
		return
	}
	claims, err := security.PeekClaims(r.Header.Get("x-auth-token"))
	if err != nil || claims.SessionID != sid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "token does not match session"})
		return
	}
	token, err := b.issuer.Sign(claims.Subject, sid, b.ttl)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": err.Error()})
		return
	}
	b.mu.Lock()
	b.sessions[sid] = token
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (b *Backend) authorize(r *http.Request) (*security.Claims, bool) {
	token := r.Header.Get("x-auth-token")
	sid := r.Header.Get("x-session-id")
	claims, err := b.issuer.Parse(token)
	if err != nil || claims.SessionID != sid {
		return nil, false
	}
	b.mu.Lock()
	current, ok := b.sessions[sid]
	b.mu.Unlock()
	return claims, ok && current == token
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
