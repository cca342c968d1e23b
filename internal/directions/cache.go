package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheEntry is a cached provider response.
type CacheEntry struct {
	Response  *ProviderResponse `json:"response"`
	FetchedAt time.Time         `json:"fetchedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Fresh reports whether the entry may be served without asking the provider.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Cache stores provider responses. Get returns (nil, nil) on a miss.
// Entries are retained for the given retention so they can be served stale on provider errors.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry, retention time.Duration) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu              sync.RWMutex
	entries         map[string]*memoryEntry
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type memoryEntry struct {
	entry    CacheEntry
	evictsAt time.Time
}

// NewMemoryCache creates a new in-process cache.
// Entries past their retention are swept at most once per cleanupInterval (default: 5 minutes).
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}
	return &MemoryCache{
		entries:         make(map[string]*memoryEntry),
		cleanupInterval: cleanupInterval,
	}
}

// Get returns a copy of the cached entry, or nil when absent or evicted.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.evictsAt) {
		return nil, nil
	}
	cpy := e.entry
	return &cpy, nil
}

// Set stores the entry until retention elapses.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry, retention time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = &memoryEntry{entry: *entry, evictsAt: now.Add(retention)}
	c.cleanupIfNeeded(now)
	return nil
}

// Len returns the number of stored entries, including ones awaiting cleanup.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cleanupIfNeeded removes evicted entries. Caller must hold the write lock.
func (c *MemoryCache) cleanupIfNeeded(now time.Time) {
	if now.Sub(c.lastCleanup) < c.cleanupInterval {
		return
	}
	c.lastCleanup = now
	for key, e := range c.entries {
		if now.After(e.evictsAt) {
			delete(c.entries, key)
		}
	}
}

// RedisCache is a Cache shared between API instances.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// Key prefix for cached directions.
const redisKeyPrefix = "cache:directions:"

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client, prefix: redisKeyPrefix}
}

// Get retrieves an entry from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decoding cached directions: %w", err)
	}
	return &entry, nil
}

// Set stores an entry in Redis with the retention as TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry, retention time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding directions: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
