package drivetime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/richxcame/parking-drivetime/pkg/geo"
	"github.com/richxcame/parking-drivetime/pkg/logger"
	"go.uber.org/zap"
)

// DefaultTTL is how long a cached origin entry stays valid
const DefaultTTL = 24 * time.Hour

var errMalformedEntry = errors.New("malformed cache entry")

// OriginKey rounds the point to 3 decimals (about 111m) and formats it as "lat,lng".
// Nearby origins share one entry.
func OriginKey(c Coordinate) string {
	return strconv.FormatFloat(geo.RoundTo(c.Lat, 3), 'f', 3, 64) + "," +
		strconv.FormatFloat(geo.RoundTo(c.Lng, 3), 'f', 3, 64)
}

// Cache maps origin keys to the results computed for them. Expiry is lazy on
// read; Cleanup removes expired entries eagerly. Every successful merge writes a
// full snapshot to the store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry

	saveMu sync.Mutex
	store  Store
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewCache creates an empty cache backed by store. A nil store keeps the cache in memory only.
func NewCache(store Store, ttl time.Duration) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]*CacheEntry),
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		log:     logger.Named("drivetime.cache"),
	}
}

// TTL returns the configured time to live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Len returns the number of entries held, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns a copy of the entry for key if it is younger than the cache TTL
func (c *Cache) Get(key string) (*CacheEntry, bool) {
	return c.GetWithTTL(key, c.ttl)
}

// GetWithTTL returns a copy of the entry for key if now - timestamp < ttl
func (c *Cache) GetWithTTL(key string, ttl time.Duration) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.expired(entry, ttl) {
		return nil, false
	}
	return entry.clone(), true
}

// Merge unions data into the entry for key, refreshes its timestamp and persists
// the cache. An expired entry is replaced rather than extended.
func (c *Cache) Merge(ctx context.Context, key string, data map[string]Result) error {
	if len(data) == 0 {
		return nil
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok || c.expired(entry, c.ttl) {
		entry = &CacheEntry{OriginKey: key, Data: make(map[string]Result, len(data))}
		c.entries[key] = entry
	}
	for id, r := range data {
		entry.Data[id] = r
	}
	entry.Timestamp = c.now().UnixMilli()
	c.mu.Unlock()

	return c.persist(ctx)
}

// Invalidate drops the entry for key. It reports whether an entry existed.
func (c *Cache) Invalidate(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, c.persist(ctx)
}

// Cleanup deletes every expired entry and returns how many were removed
func (c *Cache) Cleanup(ctx context.Context) (int, error) {
	c.mu.Lock()
	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry, c.ttl) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	return removed, c.persist(ctx)
}

// Load replaces the in-memory entries with the store contents. Malformed and
// expired entries are skipped one by one. It returns the number of entries kept.
func (c *Cache) Load(ctx context.Context) (int, error) {
	raw, err := c.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load driving-time cache: %w", err)
	}

	loaded := make(map[string]*CacheEntry, len(raw))
	skipped, expired := 0, 0
	for key, value := range raw {
		entry, err := decodeEntry(key, value)
		if err != nil {
			skipped++
			c.log.Warn("skipping cache entry", zap.String("origin_key", key), zap.Error(err))
			continue
		}
		if c.expired(entry, c.ttl) {
			expired++
			continue
		}
		loaded[key] = entry
	}

	c.mu.Lock()
	c.entries = loaded
	c.mu.Unlock()
	cacheEntries.Set(float64(len(loaded)))

	c.log.Info("driving-time cache loaded",
		zap.Int("entries", len(loaded)),
		zap.Int("skipped", skipped),
		zap.Int("expired", expired),
	)
	return len(loaded), nil
}

// persist writes a snapshot of the whole cache. Snapshots are taken and saved
// under saveMu so they reach the store in order.
func (c *Cache) persist(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.RLock()
	snapshot := make(map[string]json.RawMessage, len(c.entries))
	var encodeErr error
	for key, entry := range c.entries {
		b, err := json.Marshal(entry)
		if err != nil {
			encodeErr = err
			break
		}
		snapshot[key] = b
	}
	c.mu.RUnlock()

	if encodeErr != nil {
		return fmt.Errorf("encode driving-time cache: %w", encodeErr)
	}
	cacheEntries.Set(float64(len(snapshot)))

	if err := c.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save driving-time cache: %w", err)
	}
	return nil
}

func (c *Cache) expired(entry *CacheEntry, ttl time.Duration) bool {
	age := c.now().UnixMilli() - entry.Timestamp
	return age >= ttl.Milliseconds()
}

func (e *CacheEntry) clone() *CacheEntry {
	data := make(map[string]Result, len(e.Data))
	for id, r := range e.Data {
		data[id] = r
	}
	return &CacheEntry{OriginKey: e.OriginKey, Data: data, Timestamp: e.Timestamp}
}

// decodeEntry parses one persisted entry. An entry needs a positive timestamp and
// a data object whose results have a finite non-negative distance and duration.
func decodeEntry(key string, raw json.RawMessage) (*CacheEntry, error) {
	var wire struct {
		Data      map[string]json.RawMessage `json:"data"`
		Timestamp *int64                     `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedEntry, err)
	}
	if wire.Timestamp == nil || *wire.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: missing timestamp", errMalformedEntry)
	}
	if wire.Data == nil {
		return nil, fmt.Errorf("%w: missing data", errMalformedEntry)
	}

	entry := &CacheEntry{
		OriginKey: key,
		Data:      make(map[string]Result, len(wire.Data)),
		Timestamp: *wire.Timestamp,
	}
	for id, value := range wire.Data {
		var r struct {
			DistanceKm  *float64 `json:"distanceKm"`
			DurationMin *int     `json:"durationMin"`
		}
		if err := json.Unmarshal(value, &r); err != nil {
			return nil, fmt.Errorf("%w: result %q: %v", errMalformedEntry, id, err)
		}
		if r.DistanceKm == nil || r.DurationMin == nil || *r.DistanceKm < 0 || *r.DurationMin < 0 {
			return nil, fmt.Errorf("%w: result %q is incomplete", errMalformedEntry, id)
		}
		entry.Data[id] = Result{DistanceKm: *r.DistanceKm, DurationMin: *r.DurationMin}
	}
	return entry, nil
}
