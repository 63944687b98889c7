// Package ratelimit provides a Redis-backed fixed-window rate limiter. The
// counter lives in Redis so the limit holds across replicas.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter allows at most Limit hits per key within each Window.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewLimiter creates a fixed-window limiter. The prefix namespaces keys so
// independent limiters can share one Redis.
func NewLimiter(client *redis.Client, prefix string, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow records a hit against the key and reports whether it is within the
// limit. The first hit of a window sets the expiry, so the window starts
// with the first request rather than on a fixed clock boundary.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + ":" + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit %s: %w", redisKey, err)
	}

	return incr.Val() <= l.limit, nil
}
