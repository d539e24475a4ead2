package drivetime

import (
	"context"
	"encoding/json"
)

// Router resolves one origin against many destinations. Implementations return one
// entry per requested id unless they return an error.
type Router interface {
	FetchBatch(ctx context.Context, origin Coordinate, destinations []DestinationPoint) (map[string]Result, error)
}

// Store persists cache snapshots. Values are the JSON encoding of one CacheEntry,
// keyed by origin key.
type Store interface {
	Load(ctx context.Context) (map[string]json.RawMessage, error)
	Save(ctx context.Context, entries map[string]json.RawMessage) error
}

// Ensure implementations satisfy the interfaces
var (
	_ Router = (*RoutingClient)(nil)
	_ Store  = (*MemoryStore)(nil)
	_ Store  = (*FileStore)(nil)
	_ Store  = (*RedisStore)(nil)
	_ Store  = (*SQLStore)(nil)
)
