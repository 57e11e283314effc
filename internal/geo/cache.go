// Package geo holds the geocode cache and the ZIP neighbor lookup.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// GeocodeTTL bounds how long a ZIP's coordinates are trusted without re-checking.
const GeocodeTTL = time.Hour

// Point is a geocoded coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geocode is a cached geocoding result. State travels with the point because
// the ZIP fidelity checks need it on warm hits too, not just on vendor calls.
type Geocode struct {
	Point Point  `json:"point"`
	State string `json:"state"`
}

// Cache stores ZIP geocode results. Best-effort: a miss or error just means a
// fresh vendor call, so implementations never need to be durable.
type Cache interface {
	Get(ctx context.Context, zip string) (Geocode, bool)
	Set(ctx context.Context, zip string, g Geocode)
}

// MemoryCache is the per-process fallback cache. Reset on restart by design.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	geocode Geocode
	expires time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, zip string) (Geocode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[zip]
	if !ok || c.now().After(entry.expires) {
		delete(c.entries, zip)
		return Geocode{}, false
	}
	return entry.geocode, true
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, zip string, g Geocode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[zip] = memoryEntry{geocode: g, expires: c.now().Add(GeocodeTTL)}
}

// RedisCache shares geocode results across instances through redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(zip string) string {
	return fmt.Sprintf("geocode:%s", zip)
}

// Get implements Cache. Any redis failure reads as a miss.
func (c *RedisCache) Get(ctx context.Context, zip string) (Geocode, bool) {
	data, err := c.client.Get(ctx, redisKey(zip)).Bytes()
	if err != nil {
		return Geocode{}, false
	}
	var g Geocode
	if err := json.Unmarshal(data, &g); err != nil {
		return Geocode{}, false
	}
	return g, true
}

// Set implements Cache. Write failures are ignored.
func (c *RedisCache) Set(ctx context.Context, zip string, g Geocode) {
	data, err := json.Marshal(g)
	if err != nil {
		return
	}
	c.client.Set(ctx, redisKey(zip), data, GeocodeTTL)
}
