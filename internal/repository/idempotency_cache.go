package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingMarker is stored while a request holding the key is in flight.
const pendingMarker = "-"

// IdempotencyCache keeps a short-lived mapping from idempotency keys to
// reservation IDs in Redis.  The database's unique key is the source of
// truth; the cache lets concurrent duplicates fail fast instead of
// queueing on the resource row lock.
type IdempotencyCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewIdempotencyCache returns a cache that stores entries for ttl.  A nil
// client yields a cache whose operations are no-ops.
func NewIdempotencyCache(rdb *redis.Client, prefix string, ttl time.Duration) *IdempotencyCache {
	if prefix == "" {
		prefix = "idem"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *IdempotencyCache) key(k string) string { return c.prefix + ":" + k }

// Claim marks the key as in flight.  It returns false when another request
// already holds or has completed the key.  Redis failures are reported as
// a successful claim so that the database remains the arbiter.
func (c *IdempotencyCache) Claim(ctx context.Context, key string) bool {
	if c == nil || c.rdb == nil {
		return true
	}
	ok, err := c.rdb.SetNX(ctx, c.key(key), pendingMarker, c.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release drops an in-flight claim that did not produce a reservation.
func (c *IdempotencyCache) Release(ctx context.Context, key string) {
	if c == nil || c.rdb == nil {
		return
	}
	// Only delete the pending marker, never a remembered reservation.
	if v, err := c.rdb.Get(ctx, c.key(key)).Result(); err == nil && v == pendingMarker {
		_ = c.rdb.Del(ctx, c.key(key)).Err()
	}
}

// Remember records the reservation created under key.
func (c *IdempotencyCache) Remember(ctx context.Context, key, reservationID string) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(key), reservationID, c.ttl).Err()
}

// Lookup returns the reservation ID remembered for key.  pending is true
// when the key is claimed but no reservation has been recorded yet.
func (c *IdempotencyCache) Lookup(ctx context.Context, key string) (id string, pending bool, err error) {
	if c == nil || c.rdb == nil {
		return "", false, nil
	}
	v, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == pendingMarker {
		return "", true, nil
	}
	return v, false, nil
}
