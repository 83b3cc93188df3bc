package service

import (
	"context"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
)

// AuthService is the remote account API the manager delegates to.
type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.SessionRecord, error)
	Logout(ctx context.Context, token, sessionID string) error
	Register(ctx context.Context, reg domain.Registration) (map[string]any, error)
	UpdateProfile(ctx context.Context, updates map[string]any, token, sessionID string) (map[string]any, error)
}

// TokenVerifier covers the verify-token and refresh-token endpoints.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token, sessionID string) (*domain.VerifyResult, error)
	RefreshToken(ctx context.Context, token, sessionID string) (*domain.RefreshResult, error)
}

// RealtimeConn is the live connection torn down when a session ends.
// Disconnect must be safe to call when already disconnected.
type RealtimeConn interface {
	Disconnect()
}

type Navigator interface {
	Push(path string)
	Replace(path string)
}

type noopRealtime struct{}

func (noopRealtime) Disconnect() {}

type noopNavigator struct{}

func (noopNavigator) Push(string)    {}
func (noopNavigator) Replace(string) {}
