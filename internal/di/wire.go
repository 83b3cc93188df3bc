//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/sandeepkv93/chat-session-client/internal/app"
	"github.com/sandeepkv93/chat-session-client/internal/config"
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, error) {
	wire.Build(AppSet)
	return nil, nil
}

func InitializeSession(ctx context.Context, cfg *config.Config) (*Session, error) {
	wire.Build(SessionSet)
	return nil, nil
}
