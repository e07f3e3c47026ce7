package spatial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
)

// Cache stores raw isochrone responses.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// MemoryCache is an in-process cache backed by ristretto.
type MemoryCache struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemoryCache creates a cache bounded to maxBytes of response bodies.
func NewMemoryCache(maxBytes int64) (*MemoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &MemoryCache{c: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	return m.c.Get(key)
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	m.c.Wait()
}

// Close releases the cache's goroutines.
func (m *MemoryCache) Close() {
	m.c.Close()
}

// RedisCache shares cached responses between instances.
type RedisCache struct {
	rc *redis.Client
}

// NewRedisCache wraps a redis client.
func NewRedisCache(rc *redis.Client) *RedisCache {
	return &RedisCache{rc: rc}
}

// OpenRedis creates a client for addr. The connection is lazy.
func OpenRedis(addr, pass string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rc.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = r.rc.Set(ctx, key, value, ttl).Err()
}

// TTL reports the remaining lifetime of key. A key without expiry reports 0.
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	d, err := r.rc.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	switch {
	case d > 0:
		return d, true
	case d == -1:
		return 0, true
	}
	return 0, false
}

// Ping checks that the server is reachable.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.rc.Ping(ctx).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTLReader is implemented by caches that can report how long an entry has
// left to live.
type TTLReader interface {
	TTL(ctx context.Context, key string) (time.Duration, bool)
}

// Tiered reads through caches in order and back-fills the faster tiers with
// the remaining lifetime of the hit, so a back-filled entry never outlives
// its source. Hits from a tier that cannot report a lifetime are back-filled
// without expiry; entries whose lifetime cannot be read are not back-filled.
type Tiered []Cache

func (t Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, c := range t {
		v, ok := c.Get(ctx, key)
		if !ok {
			continue
		}
		if i == 0 {
			return v, true
		}
		var ttl time.Duration
		if r, ok := c.(TTLReader); ok {
			if ttl, ok = r.TTL(ctx, key); !ok {
				return v, true
			}
		}
		for j := 0; j < i; j++ {
			t[j].Set(ctx, key, v, ttl)
		}
		return v, true
	}
	return nil, false
}

func (t Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	for _, c := range t {
		c.Set(ctx, key, value, ttl)
	}
}
