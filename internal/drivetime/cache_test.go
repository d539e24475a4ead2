package drivetime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(store Store) (*Cache, *clock) {
	clk := &clock{now: baseTime}
	cache := NewCache(store, DefaultTTL)
	cache.now = clk.Now
	return cache, clk
}

type failingStore struct {
	loadErr error
	saveErr error
}

func (s failingStore) Load(context.Context) (map[string]json.RawMessage, error) {
	return nil, s.loadErr
}

func (s failingStore) Save(context.Context, map[string]json.RawMessage) error {
	return s.saveErr
}

func TestOriginKey(t *testing.T) {
	tests := []struct {
		in   Coordinate
		want string
	}{
		{Coordinate{Lat: 1.3521, Lng: 103.8198}, "1.352,103.820"},
		{Coordinate{Lat: 1.35249, Lng: 103.81951}, "1.352,103.820"},
		{Coordinate{Lat: -33.8688, Lng: 151.2093}, "-33.869,151.209"},
		{Coordinate{Lat: 0, Lng: 0}, "0.000,0.000"},
		{Coordinate{Lat: 1.3, Lng: 103.8}, "1.300,103.800"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginKey(tt.in))
	}
}

func TestCache_MergeCreatesAndUnions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache, clk := newTestCache(store)

	require.NoError(t, cache.Merge(ctx, "1.352,103.820", map[string]Result{
		"a": {DistanceKm: 1.2, DurationMin: 4},
		"b": {DistanceKm: 2.5, DurationMin: 7},
	}))

	clk.Advance(time.Hour)
	require.NoError(t, cache.Merge(ctx, "1.352,103.820", map[string]Result{
		"b": {DistanceKm: 2.5, DurationMin: 6},
		"c": {DistanceKm: 9.0, DurationMin: 15},
	}))

	entry, ok := cache.Get("1.352,103.820")
	require.True(t, ok)
	assert.Equal(t, map[string]Result{
		"a": {DistanceKm: 1.2, DurationMin: 4},
		"b": {DistanceKm: 2.5, DurationMin: 6},
		"c": {DistanceKm: 9.0, DurationMin: 15},
	}, entry.Data)
	assert.Equal(t, baseTime.Add(time.Hour).UnixMilli(), entry.Timestamp)
	assert.Equal(t, 2, store.Saves())
}

func TestCache_MergeEmptyIsNoop(t *testing.T) {
	store := NewMemoryStore()
	cache, _ := newTestCache(store)

	require.NoError(t, cache.Merge(context.Background(), "1.352,103.820", nil))
	assert.Zero(t, cache.Len())
	assert.Zero(t, store.Saves())
}

func TestCache_TTLExpiry(t *testing.T) {
	cache, clk := newTestCache(nil)
	require.NoError(t, cache.Merge(context.Background(), "k", map[string]Result{"a": {DurationMin: 3}}))

	clk.Advance(23 * time.Hour)
	_, ok := cache.Get("k")
	assert.True(t, ok)

	clk.Advance(time.Hour)
	_, ok = cache.Get("k")
	assert.False(t, ok, "an entry exactly one TTL old is expired")

	clk.Advance(time.Hour)
	_, ok = cache.Get("k")
	assert.False(t, ok)

	_, ok = cache.GetWithTTL("k", 48*time.Hour)
	assert.True(t, ok)
}

func TestCache_MergeReplacesExpiredEntry(t *testing.T) {
	ctx := context.Background()
	cache, clk := newTestCache(nil)

	require.NoError(t, cache.Merge(ctx, "k", map[string]Result{"old": {DurationMin: 3}}))
	clk.Advance(25 * time.Hour)
	require.NoError(t, cache.Merge(ctx, "k", map[string]Result{"new": {DurationMin: 5}}))

	entry, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, map[string]Result{"new": {DurationMin: 5}}, entry.Data)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache, _ := newTestCache(nil)
	require.NoError(t, cache.Merge(context.Background(), "k", map[string]Result{"a": {DurationMin: 3}}))

	entry, _ := cache.Get("k")
	entry.Data["b"] = Result{DurationMin: 99}

	again, _ := cache.Get("k")
	assert.Len(t, again.Data, 1)
}

func TestCache_InvalidateAndCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	cache, clk := newTestCache(store)

	require.NoError(t, cache.Merge(ctx, "old", map[string]Result{"a": {DurationMin: 3}}))
	clk.Advance(20 * time.Hour)
	require.NoError(t, cache.Merge(ctx, "fresh", map[string]Result{"a": {DurationMin: 3}}))
	require.NoError(t, cache.Merge(ctx, "doomed", map[string]Result{"a": {DurationMin: 3}}))

	removed, err := cache.Invalidate(ctx, "doomed")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = cache.Invalidate(ctx, "doomed")
	require.NoError(t, err)
	assert.False(t, removed)

	clk.Advance(5 * time.Hour)
	n, err := cache.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, cache.Len())

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, persisted, "fresh")
	assert.NotContains(t, persisted, "old")
	assert.NotContains(t, persisted, "doomed")

	n, err = cache.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_LoadSkipsMalformedEntries(t *testing.T) {
	ts := baseTime.Add(-time.Hour).UnixMilli()
	stale := baseTime.Add(-25 * time.Hour).UnixMilli()

	store := NewMemoryStoreWith(map[string]json.RawMessage{
		"1.300,103.800": json.RawMessage(fmt.Sprintf(`{"data":{"a":{"distanceKm":1.5,"durationMin":4}},"timestamp":%d}`, ts)),
		"1.310,103.800": json.RawMessage(`not json`),
		"1.320,103.800": json.RawMessage(`{"data":{"a":{"distanceKm":1.5,"durationMin":4}}}`),
		"1.330,103.800": json.RawMessage(fmt.Sprintf(`{"data":{"a":{"distanceKm":"far"}},"timestamp":%d}`, ts)),
		"1.340,103.800": json.RawMessage(fmt.Sprintf(`{"data":{"a":{"distanceKm":1.5}},"timestamp":%d}`, ts)),
		"1.350,103.800": json.RawMessage(fmt.Sprintf(`{"timestamp":%d}`, ts)),
		"1.360,103.800": json.RawMessage(fmt.Sprintf(`{"data":{"a":{"distanceKm":1.5,"durationMin":4}},"timestamp":%d}`, stale)),
	})
	cache, _ := newTestCache(store)

	n, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	entry, ok := cache.Get("1.300,103.800")
	require.True(t, ok)
	assert.Equal(t, "1.300,103.800", entry.OriginKey)
	assert.Equal(t, Result{DistanceKm: 1.5, DurationMin: 4}, entry.Data["a"])
}

func TestCache_LoadAndSaveErrors(t *testing.T) {
	boom := errors.New("disk on fire")

	cache, _ := newTestCache(failingStore{loadErr: boom})
	_, err := cache.Load(context.Background())
	assert.ErrorIs(t, err, boom)

	cache, _ = newTestCache(failingStore{saveErr: boom})
	err = cache.Merge(context.Background(), "k", map[string]Result{"a": {DurationMin: 2}})
	assert.ErrorIs(t, err, boom)

	_, ok := cache.Get("k")
	assert.True(t, ok, "entry stays in memory when persistence fails")
}

func TestCache_PersistedFormat(t *testing.T) {
	store := NewMemoryStore()
	cache, _ := newTestCache(store)
	require.NoError(t, cache.Merge(context.Background(), "1.352,103.820", map[string]Result{"a": {DistanceKm: 1.5, DurationMin: 4}}))

	raw, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t,
		fmt.Sprintf(`{"data":{"a":{"distanceKm":1.5,"durationMin":4}},"timestamp":%d}`, baseTime.UnixMilli()),
		string(raw["1.352,103.820"]))
}

func TestCache_ConcurrentMergesUnion(t *testing.T) {
	cache, _ := newTestCache(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("cp-%d", i)
			assert.NoError(t, cache.Merge(context.Background(), "k", map[string]Result{id: {DurationMin: i}}))
		}(i)
	}
	wg.Wait()

	entry, ok := cache.Get("k")
	require.True(t, ok)
	assert.Len(t, entry.Data, 20)
}
