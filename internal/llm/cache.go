package llm

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache stores completion responses keyed by prompt hash.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Size() int
}

// responseCacheKey hashes everything that affects the completion output.
func responseCacheKey(model, system, prompt string, temperature float64) string {
	data, _ := json.Marshal(map[string]interface{}{
		"model":       model,
		"system":      system,
		"prompt":      prompt,
		"temperature": temperature,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LRUCache is an in-memory cache with LRU eviction and per-entry TTL.
type LRUCache struct {
	maxSize int
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = oldest, back = most recently used
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewLRUCache creates an in-memory cache holding at most maxSize entries.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LRUCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get retrieves a value, promoting it to most recently used.
func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*lruEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToBack(elem)
	return entry.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruEntry).key)
		}
	}

	c.entries[key] = c.order.PushBack(&lruEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Size returns the number of cached entries.
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// redisCachePrefix namespaces completion cache keys in Redis.
const redisCachePrefix = "llm:"

// RedisCache stores completion responses in Redis so cache hits survive
// restarts and are shared across instances.
type RedisCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed response cache.
func NewRedisCache(rdb *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, logger: logger}
}

// Get retrieves a cached response. Redis errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.rdb.Get(ctx, redisCachePrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Debug("redis cache get failed", zap.Error(err))
		return nil, false
	}
	return data, true
}

// Set stores a response. Failures are logged, not returned, since caching
// is best-effort.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, redisCachePrefix+key, value, ttl).Err(); err != nil {
		c.logger.Debug("redis cache set failed", zap.Error(err))
	}
}

// Size is not tracked for the remote cache.
func (c *RedisCache) Size() int {
	return 0
}

// memoryPromoteTTL bounds how long a remote hit stays in the memory layer.
const memoryPromoteTTL = time.Hour

// TieredCache layers a fast in-memory cache over a shared remote one.
// Remote hits are promoted to the memory layer.
type TieredCache struct {
	memory Cache
	remote Cache
}

// NewTieredCache combines a memory and a remote cache.
func NewTieredCache(memory, remote Cache) *TieredCache {
	return &TieredCache{memory: memory, remote: remote}
}

// Get checks the memory layer first, then the remote one.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := c.memory.Get(ctx, key); ok {
		return value, true
	}
	if value, ok := c.remote.Get(ctx, key); ok {
		c.memory.Set(ctx, key, value, memoryPromoteTTL)
		return value, true
	}
	return nil, false
}

// Set writes through to both layers.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.memory.Set(ctx, key, value, ttl)
	c.remote.Set(ctx, key, value, ttl)
}

// Size returns the memory layer size.
func (c *TieredCache) Size() int {
	return c.memory.Size()
}
