package redis

import (
	"context"
	"time"
)

// HashStore is the subset of Redis used to persist a keyed snapshot
type HashStore interface {
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	ReplaceHash(ctx context.Context, key string, fields map[string]string, expiration time.Duration) error
}

// Ensure Client implements HashStore
var _ HashStore = (*Client)(nil)
