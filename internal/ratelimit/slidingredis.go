package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a sliding-window rate limiter on Redis sorted sets: one set
// per key, one member per event, scored by nanosecond timestamp. A nil
// client disables limiting entirely, so a deployment without Redis still
// serves traffic.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow records one event under key and reports whether the event count
// inside the trailing window stays within max.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error) {
	resetAt := time.Now().Add(window)
	if l.Client == nil || max <= 0 || window <= 0 {
		return true, max, resetAt, nil
	}

	now := time.Now()
	bucket := l.Prefix + key
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", cutoff)
	pipe.ZAdd(ctx, bucket, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: key + ":" + uuid.NewString(),
	})
	count := pipe.ZCard(ctx, bucket)
	pipe.Expire(ctx, bucket, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, resetAt, err
	}

	events := int(count.Val())
	remaining = max - events
	if remaining < 0 {
		remaining = 0
	}
	return events <= max, remaining, resetAt, nil
}
