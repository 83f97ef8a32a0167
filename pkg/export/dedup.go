package export

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reportstack/export-worker/pkg/common/logger"
)

// DedupCache is a best-effort fast path for duplicate detection. Misses and
// cache failures fall through to the status repository, which stays the
// source of truth.
type DedupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupCache wraps an optional Redis client. A nil client yields a cache
// that never hits, so the worker runs unchanged without Redis configured.
func NewDedupCache(client *redis.Client, ttl time.Duration) *DedupCache {
	return &DedupCache{client: client, ttl: ttl}
}

func dedupKey(requestID string) string {
	return "export:done:" + requestID
}

// SeenDone reports whether the request id was recorded as fully handled.
func (c *DedupCache) SeenDone(ctx context.Context, requestID string) bool {
	if c == nil || c.client == nil {
		return false
	}
	n, err := c.client.Exists(ctx, dedupKey(requestID)).Result()
	if err != nil {
		logger.Log.WithError(err).WithField("request_id", requestID).
			Debug("dedup cache lookup failed, falling through to status store")
		return false
	}
	return n > 0
}

// MarkDone records a fully handled request id with the configured TTL.
func (c *DedupCache) MarkDone(ctx context.Context, requestID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, dedupKey(requestID), "1", c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("request_id", requestID).
			Debug("dedup cache write failed")
	}
}
