package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	body    []byte
	expires time.Time
}

// MemoryCache is a sharded in-process ResponseCache.
type MemoryCache struct {
	shards []cacheShard
	now    func() time.Time
}

type cacheShard struct {
	mu   sync.RWMutex
	data map[string]entry
}

const defaultShardCount = 32

func NewMemoryCache() *MemoryCache {
	return newMemoryCache(defaultShardCount)
}

func newMemoryCache(shards int) *MemoryCache {
	if shards <= 0 {
		shards = 1
	}
	out := &MemoryCache{
		shards: make([]cacheShard, shards),
		now:    time.Now,
	}
	for i := range out.shards {
		out.shards[i] = cacheShard{data: make(map[string]entry)}
	}
	return out
}

func (c *MemoryCache) shardFor(key string) *cacheShard {
	idx := hashKey(key) % uint32(len(c.shards))
	return &c.shards[idx]
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	sh := c.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		sh.mu.Lock()
		delete(sh.data, key)
		sh.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(e.body))
	copy(out, e.body)
	return out, true, nil
}

// Put stores body. A non-positive ttl never expires.
func (c *MemoryCache) Put(_ context.Context, key string, body []byte, ttl time.Duration) error {
	e := entry{body: append([]byte(nil), body...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	sh := c.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = e
	sh.mu.Unlock()
	return nil
}

func (c *MemoryCache) Purge(context.Context) error {
	for i := range c.shards {
		sh := &c.shards[i]
		sh.mu.Lock()
		sh.data = make(map[string]entry)
		sh.mu.Unlock()
	}
	return nil
}

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
