package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sandeepkv93/chat-session-client/internal/config"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open builds the backend selected by SESSION_STORE and seals it when an
// encryption key is configured.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.SessionStore {
	case config.StoreMemory:
		store = NewMemoryStore()
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		store, err = openSQL(sqlite.Open(cfg.SQLitePath))
	case config.StorePostgres:
		store, err = openSQL(postgres.Open(cfg.PostgresDSN))
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		store = NewRedisStore(client, cfg.RedisKeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.SessionStore, err)
	}

	if cfg.StorageEncryptKey != "" {
		sealed, err := NewSealedStore(store, cfg.StorageEncryptKey)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info("session store opened", "backend", cfg.SessionStore, "sealed", true)
		return sealed, nil
	}
	log.Info("session store opened", "backend", cfg.SessionStore, "sealed", false)
	return store, nil
}

func openSQL(dialector gorm.Dialector) (*SQLStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db)
}
