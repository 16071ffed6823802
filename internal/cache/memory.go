package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"tftgg/internal/gql"
)

type memoryEntry struct {
	entry     *Entry
	expiresAt time.Time
}

// MemoryCache is an in-memory LRU cache with per-entry TTL support.
type MemoryCache struct {
	cache      *lru.Cache[string, *memoryEntry]
	defaultTTL time.Duration
	mu         sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(size int, defaultTTL time.Duration) (*MemoryCache, error) {
	cache, err := lru.New[string, *memoryEntry](size)
	if err != nil {
		return nil, err
	}

	mc := &MemoryCache{
		cache:      cache,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}

	go mc.sweepLoop()

	return mc, nil
}

// Get retrieves a cached entry, removing it if expired.
func (mc *MemoryCache) Get(_ context.Context, operation string, args gql.Args) (*Entry, error) {
	key := gql.CacheKey(operation, args)

	mc.mu.RLock()
	me, ok := mc.cache.Get(key)
	mc.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if time.Now().After(me.expiresAt) {
		mc.mu.Lock()
		mc.cache.Remove(key)
		mc.mu.Unlock()
		return nil, nil
	}

	return me.entry, nil
}

// Set stores a result with its annotations. A zero meta TTL falls back to the
// cache-wide default.
func (mc *MemoryCache) Set(_ context.Context, operation string, args gql.Args, data gql.Result, meta Meta, requestID string, latency time.Duration) error {
	ttl := meta.TTL
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}

	me := &memoryEntry{
		entry: &Entry{
			Data:      data,
			Meta:      meta,
			RequestID: requestID,
			Latency:   latency,
			CachedAt:  time.Now(),
		},
		expiresAt: time.Now().Add(ttl),
	}

	mc.mu.Lock()
	mc.cache.Add(gql.CacheKey(operation, args), me)
	mc.mu.Unlock()
	return nil
}

// Close stops the sweep goroutine.
func (mc *MemoryCache) Close() {
	mc.stopOnce.Do(func() { close(mc.stop) })
}

// sweepLoop periodically removes expired entries so the LRU does not fill
// with dead weight between lookups.
func (mc *MemoryCache) sweepLoop() {
	interval := mc.defaultTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stop:
			return
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()
	for _, key := range mc.cache.Keys() {
		me, ok := mc.cache.Peek(key)
		if ok && now.After(me.expiresAt) {
			mc.cache.Remove(key)
		}
	}
}

// NoopCache is a cache that does nothing (used when caching is disabled)
type NoopCache struct{}

// NewNoopCache creates a new no-op cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Get always returns not found
func (nc *NoopCache) Get(_ context.Context, operation string, args gql.Args) (*Entry, error) {
	return nil, nil
}

// Set does nothing
func (nc *NoopCache) Set(_ context.Context, operation string, args gql.Args, data gql.Result, meta Meta, requestID string, latency time.Duration) error {
	return nil
}

// Close does nothing
func (nc *NoopCache) Close() {}
