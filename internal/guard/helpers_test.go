package guard

import (
	"context"

	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/storage"
)

type noopAuth struct{}

func (noopAuth) Login(context.Context, domain.Credentials) (*domain.SessionRecord, error) {
	return nil, domain.ErrTransportAuth
}
func (noopAuth) Logout(context.Context, string, string) error { return nil }
func (noopAuth) Register(context.Context, domain.Registration) (map[string]any, error) {
	return nil, nil
}
func (noopAuth) UpdateProfile(context.Context, map[string]any, string, string) (map[string]any, error) {
	return nil, nil
}

type noopVerifier struct{}

func (noopVerifier) VerifyToken(context.Context, string, string) (*domain.VerifyResult, error) {
	return &domain.VerifyResult{Success: true}, nil
}
func (noopVerifier) RefreshToken(context.Context, string, string) (*domain.RefreshResult, error) {
	return &domain.RefreshResult{}, nil
}

func newMemStore() *storage.MemoryStore { return storage.NewMemoryStore() }
