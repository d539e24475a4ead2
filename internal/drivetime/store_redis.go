package drivetime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/richxcame/parking-drivetime/pkg/redis"
)

// RedisStore keeps the snapshot in a single Redis hash, one field per origin key.
// The hash expires ttl after the last save so an idle cache ages out with its entries.
type RedisStore struct {
	client redisclient.HashStore
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store on the given hash key
func NewRedisStore(client redisclient.HashStore, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "drivetime:cache"
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	fields, err := s.client.HashGetAll(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read hash %s: %w", s.key, err)
	}
	entries := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		entries[k] = json.RawMessage(v)
	}
	return entries, nil
}

func (s *RedisStore) Save(ctx context.Context, entries map[string]json.RawMessage) error {
	fields := make(map[string]string, len(entries))
	for k, v := range entries {
		fields[k] = string(v)
	}
	if err := s.client.ReplaceHash(ctx, s.key, fields, s.ttl); err != nil {
		return fmt.Errorf("write hash %s: %w", s.key, err)
	}
	return nil
}
