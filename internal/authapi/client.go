package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	HeaderAuthToken = "x-auth-token"
	HeaderSessionID = "x-session-id"
	HeaderRequestID = "X-Request-Id"

	maxResponseBytes = 1 << 20
)

// Client talks to the chat backend's auth endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Token     string         `json:"token"`
	SessionID string         `json:"sessionId"`
	User      map[string]any `json:"user"`
}

type userResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	User    map[string]any `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.SessionRecord, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", creds, "", "", &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Token == "" || resp.SessionID == "" {
		return nil, &domain.RemoteRejectionError{Message: resp.Message}
	}
	return domain.NewSessionRecord(resp.Token, resp.SessionID, resp.User), nil
}

func (c *Client) Logout(ctx context.Context, token, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, token, sessionID, nil)
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (map[string]any, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", reg, "", "", &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &domain.RemoteRejectionError{Message: resp.Message}
	}
	return resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, updates map[string]any, token, sessionID string) (map[string]any, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodPut, "/api/users/profile", updates, token, sessionID, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &domain.RemoteRejectionError{Message: resp.Message}
	}
	return resp.User, nil
}

// VerifyToken returns the decoded body for any 2xx response, including
// success=false; the caller decides how to escalate.
func (c *Client) VerifyToken(ctx context.Context, token, sessionID string) (*domain.VerifyResult, error) {
	var resp domain.VerifyResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify-token", nil, token, sessionID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RefreshToken(ctx context.Context, token, sessionID string) (*domain.RefreshResult, error) {
	var resp domain.RefreshResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh-token", nil, token, sessionID, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token, sessionID string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	if token != "" {
		req.Header.Set(HeaderAuthToken, token)
	}
	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	c.logger.Debug("auth api call",
		"method", method,
		"path", path,
		"status", res.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, StatusCode: res.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage accepts both {"message": "..."} and the
// {"error": {"message": "..."}} envelope.
func errorMessage(raw []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &nested) == nil {
		return nested.Message
	}
	var plain string
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &plain) == nil {
		return plain
	}
	return ""
}

