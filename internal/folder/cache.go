package folder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache remembers resolved folder ids keyed by parent and lower-cased name.
type Cache interface {
	Get(ctx context.Context, parentID, name string) (string, bool, error)
	Set(ctx context.Context, parentID, name, id string) error
	Delete(ctx context.Context, parentID, name string) error
}

func cacheKey(parentID, name string) string {
	return parentID + "/" + strings.ToLower(name)
}

type memoryEntry struct {
	id        string
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with a fixed TTL.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, parentID, name string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(parentID, name)
	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.id, true, nil
}

func (c *MemoryCache) Set(_ context.Context, parentID, name, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(parentID, name)] = memoryEntry{id: id, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, parentID, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(parentID, name))
	return nil
}

// RedisCache stores folder ids in redis so several agents (or restarts)
// share them.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "folder:"}
}

func (c *RedisCache) Get(ctx context.Context, parentID, name string) (string, bool, error) {
	id, err := c.rdb.Get(ctx, c.prefix+cacheKey(parentID, name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get folder: %w", err)
	}
	return id, true, nil
}

func (c *RedisCache) Set(ctx context.Context, parentID, name, id string) error {
	if err := c.rdb.Set(ctx, c.prefix+cacheKey(parentID, name), id, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set folder: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, parentID, name string) error {
	if err := c.rdb.Del(ctx, c.prefix+cacheKey(parentID, name)).Err(); err != nil {
		return fmt.Errorf("redis delete folder: %w", err)
	}
	return nil
}
