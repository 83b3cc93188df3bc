package storage

import (
	"context"
	"sync"

	"github.com/sandeepkv93/chat-session-client/internal/observability"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		observability.RecordStorageOperation(ctx, "memory", "get", "error")
		return "", false, ErrStoreClosed
	}
	v, ok := s.values[key]
	if !ok {
		observability.RecordStorageOperation(ctx, "memory", "get", "miss")
		return "", false, nil
	}
	observability.RecordStorageOperation(ctx, "memory", "get", "success")
	return v, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.RecordStorageOperation(ctx, "memory", "set", "error")
		return ErrStoreClosed
	}
	s.values[key] = value
	observability.RecordStorageOperation(ctx, "memory", "set", "success")
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.RecordStorageOperation(ctx, "memory", "remove", "error")
		return ErrStoreClosed
	}
	delete(s.values, key)
	observability.RecordStorageOperation(ctx, "memory", "remove", "success")
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
