package storage

import (
	"context"
	"errors"

	"github.com/sandeepkv93/chat-session-client/internal/observability"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session keys under a shared prefix. Values carry no TTL;
// idle expiry is decided from the record's lastActivity.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "chat_session"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.dataKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		observability.RecordStorageOperation(ctx, "redis", "get", "miss")
		return "", false, nil
	}
	if err != nil {
		observability.RecordStorageOperation(ctx, "redis", "get", "error")
		return "", false, err
	}
	observability.RecordStorageOperation(ctx, "redis", "get", "success")
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	err := s.client.Set(ctx, s.dataKey(key), value, 0).Err()
	observability.RecordStorageOperation(ctx, "redis", "set", statusOf(err))
	return err
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.dataKey(key)).Err()
	observability.RecordStorageOperation(ctx, "redis", "remove", statusOf(err))
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) dataKey(key string) string {
	return s.prefix + ":" + key
}
