package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the byte-level backend a Cache reads and writes through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStore keeps entries in Redis.
type RedisStore struct {
	RDB *redis.Client
}

func NewRedisStore(addr, pass string, db int) *RedisStore {
	return &RedisStore{
		RDB: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.RDB.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.RDB.Del(ctx, keys...).Err()
}

// Ping checks the connection; used at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.RDB.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.RDB.Close()
}

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

// MemoryStore is an in-process bounded store. The LRU enforces maxTTL for
// every entry; shorter per-entry TTLs are checked on read.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

func NewMemoryStore(size int, maxTTL time.Duration) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.deadline.IsZero() && !s.now().Before(e.deadline) {
		s.lru.Remove(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.deadline = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}
