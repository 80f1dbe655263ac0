package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "vigil/internal/platform/redis"
	"vigil/internal/validation"
)

// Redis is the shared cache for multi-instance deployments. Each decision is
// a JSON value with a server-side TTL, and a per-fingerprint index set makes
// revocation-time invalidation a single round trip instead of a SCAN.
type Redis struct {
	client    *platformredis.Client
	keyPrefix string
	logger    *slog.Logger

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewRedis constructs a Redis-backed cache. keyPrefix namespaces the keys so
// one Redis can serve several environments.
func NewRedis(client *platformredis.Client, keyPrefix string, logger *slog.Logger) *Redis {
	return &Redis{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (c *Redis) entryKey(fingerprint, resource string) string {
	return c.keyPrefix + "decision:" + fingerprint + ":" + resource
}

func (c *Redis) indexKey(fingerprint string) string {
	return c.keyPrefix + "index:" + fingerprint
}

func (c *Redis) Get(ctx context.Context, fingerprint, resource string) (*validation.CachedDecision, bool) {
	payload, err := c.client.Get(ctx, c.entryKey(fingerprint, resource)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache lookup failed, treating as miss", "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}

	var decision validation.CachedDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		c.logger.WarnContext(ctx, "cache entry corrupt, treating as miss", "error", err)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return &decision, true
}

func (c *Redis) Put(ctx context.Context, fingerprint, resource string, decision validation.CachedDecision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(decision)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry marshal failed", "error", err)
		return
	}

	entryKey := c.entryKey(fingerprint, resource)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entryKey, payload, ttl)
	pipe.SAdd(ctx, c.indexKey(fingerprint), entryKey)
	// The index outlives its newest entry by a margin so invalidation still
	// finds keys written just before expiry.
	pipe.Expire(ctx, c.indexKey(fingerprint), ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnContext(ctx, "cache store failed", "error", err)
	}
}

func (c *Redis) Invalidate(ctx context.Context, fingerprint string) {
	indexKey := c.indexKey(fingerprint)
	entryKeys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "cache invalidation index lookup failed", "error", err, "fingerprint", fingerprint)
		return
	}

	keys := append(entryKeys, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "error", err, "fingerprint", fingerprint)
		return
	}
	c.evictions.Add(uint64(len(entryKeys)))
}

// Stats returns the running hit/miss/eviction counters for this instance.
func (c *Redis) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
