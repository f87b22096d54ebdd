package intake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis helpers for specimen JSON payloads. It is an optional
// dependency: a nil cache or nil client degrades to direct store reads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Ping verifies Redis connectivity. It doubles as the Redis dependency probe.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return redis.ErrClosed
	}
	return c.client.Ping(ctx).Err()
}

// Get unmarshals a cached specimen. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, accession string) (Specimen, bool) {
	if c == nil || c.client == nil {
		return Specimen{}, false
	}
	data, err := c.client.Get(ctx, key(accession)).Bytes()
	if err != nil {
		return Specimen{}, false
	}
	var sp Specimen
	if err := json.Unmarshal(data, &sp); err != nil {
		return Specimen{}, false
	}
	return sp, true
}

// Set stores a specimen with the configured TTL. Failures are swallowed;
// caching is best effort.
func (c *Cache) Set(ctx context.Context, sp Specimen) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(sp)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(sp.Accession), data, c.ttl).Err()
}

func key(accession string) string {
	return "intake:specimen:" + accession
}
