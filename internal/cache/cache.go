package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through cache. Concurrent misses on one key share a
// single load.
type Cache struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
	sf    singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64
}

func New(store Store, ttl time.Duration, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: store, ttl: ttl, log: log, gen: make(map[string]uint64)}
}

// Store exposes the backend for callers that keep their own keys in it.
func (c *Cache) Store() Store {
	return c.store
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	b, err := c.store.Get(ctx, key)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrMiss) {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		gen := c.generation(key)
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		// An Invalidate during the load means b may predate the write.
		if c.generation(key) != gen {
			return b, nil
		}
		if e := c.store.Set(ctx, key, b, ttl); e != nil {
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(e))
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate evicts keys after a write to the collection they cache.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		c.gen[k]++
		c.sf.Forget(k)
	}
	c.mu.Unlock()
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}
