package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshots is a short-TTL redis cache for serialized job snapshots, keyed by
// job id. It absorbs the polling read load on GET /jobs/{id}; every mutation
// of a job must call Invalidate so the next poll reads through to postgres.
//
// A nil *Snapshots is valid and degrades to a pass-through (no redis in dev).
type Snapshots struct {
	rdb       *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewSnapshots(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Snapshots {
	if keyPrefix == "" {
		keyPrefix = "jobs:snapshot:"
	}
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Snapshots{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *Snapshots) Get(ctx context.Context, jobID string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, c.keyPrefix+jobID).Bytes()
	if err != nil {
		// redis.Nil is a miss; anything else is treated the same,
		// the store stays authoritative
		return nil, false
	}
	return raw, true
}

func (c *Snapshots) Set(ctx context.Context, jobID string, raw []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Set(ctx, c.keyPrefix+jobID, raw, c.ttl).Err()
}

func (c *Snapshots) Invalidate(ctx context.Context, jobID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.keyPrefix+jobID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		// best effort: the TTL bounds how long a stale snapshot can live
		return
	}
}
