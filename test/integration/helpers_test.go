package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/chat-session-client/internal/authapi"
	"github.com/sandeepkv93/chat-session-client/internal/authapi/authapitest"
	"github.com/sandeepkv93/chat-session-client/internal/guard"
	"github.com/sandeepkv93/chat-session-client/internal/http/router"
	"github.com/sandeepkv93/chat-session-client/internal/service"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type hostEnv struct {
	backend *authapitest.Backend
	redis   *miniredis.Miniredis
	store   storage.Store
	manager *service.SessionManager
	baseURL string
	client  *http.Client
}

// newHostEnv runs the view host over a sealed redis store against the
// in-process auth backend.
func newHostEnv(t *testing.T, cfg service.SessionConfig, opts ...service.SessionManagerOption) *hostEnv {
	t.Helper()
	backend, api := authapitest.NewServer(t)
	backend.AddUser("Ada", "ada@example.com", "pw")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sealed, err := storage.NewSealedStore(storage.NewRedisStore(rdb, "itest"), "integration-secret")
	if err != nil {
		t.Fatalf("sealed store: %v", err)
	}
	t.Cleanup(func() { _ = sealed.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := authapi.NewClient(api.URL, 5*time.Second, authapi.WithLogger(logger))
	mgr, err := service.NewSessionManager(service.SessionDependencies{
		Auth:     client,
		Verifier: client,
		Store:    sealed,
	}, cfg, append([]service.SessionManagerOption{service.WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	mgr.Initialize(context.Background())

	host := httptest.NewServer(router.NewRouter(router.Dependencies{
		Manager:             mgr,
		Policy:              guard.DefaultPolicy(),
		Logger:              logger,
		SessionRateLimitRPM: 1000,
	}))
	t.Cleanup(host.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &hostEnv{
		backend: backend,
		redis:   mr,
		store:   sealed,
		manager: mgr,
		baseURL: host.URL,
		client: &http.Client{
			Jar:     jar,
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (e *hostEnv) csrf(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(e.baseURL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == "csrf_token" {
			return c.Value
		}
	}
	resp := e.get(t, "/login")
	_ = resp.Body.Close()
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == "csrf_token" {
			return c.Value
		}
	}
	t.Fatal("no csrf cookie issued")
	return ""
}

func (e *hostEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *hostEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	form.Set("csrf_token", e.csrf(t))
	resp, err := e.client.PostForm(e.baseURL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *hostEnv) postAPI(t *testing.T, path string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.baseURL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-CSRF-Token", e.csrf(t))
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func (e *hostEnv) login(t *testing.T) {
	t.Helper()
	resp := e.postForm(t, "/login", url.Values{"email": {"ada@example.com"}, "password": {"pw"}})
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || !strings.HasPrefix(resp.Header.Get("Location"), "/chat") {
		t.Fatalf("login: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}
}
