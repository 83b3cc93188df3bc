package storage

import (
	"context"
	"errors"
)

const (
	KeyUser             = "user"
	KeyLastVerification = "lastTokenVerification"
)

var ErrStoreClosed = errors.New("store closed")

// Store is the persistent key-value contract the session manager reads and
// writes. Get reports a missing key with ok=false and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
