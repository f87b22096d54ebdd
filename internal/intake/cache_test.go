package intake_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/labforge/intake-api/internal/intake"
)

func newTestCache(t *testing.T, ttl time.Duration) (*intake.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return intake.NewCache(client, ttl), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	sp := intake.Specimen{
		Accession:    "3f0c9d2e-0000-0000-0000-000000000001",
		CaseNumber:   "2026-0142",
		SpecimenType: "buccal",
		Status:       "received",
	}
	cache.Set(ctx, sp)

	got, ok := cache.Get(ctx, sp.Accession)
	require.True(t, ok)
	require.Equal(t, sp.CaseNumber, got.CaseNumber)
	require.Equal(t, sp.SpecimenType, got.SpecimenType)
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)

	_, ok := cache.Get(context.Background(), "missing-accession")
	require.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t, 30*time.Second)
	ctx := context.Background()

	sp := intake.Specimen{Accession: "acc-1", CaseNumber: "2026-0001"}
	cache.Set(ctx, sp)

	mr.FastForward(time.Minute)
	_, ok := cache.Get(ctx, sp.Accession)
	require.False(t, ok)
}

func TestCachePing(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	require.NoError(t, cache.Ping(context.Background()))

	mr.Close()
	require.Error(t, cache.Ping(context.Background()))
}

func TestNilCacheDegrades(t *testing.T) {
	var cache *intake.Cache
	ctx := context.Background()

	require.Error(t, cache.Ping(ctx), "nil cache must probe as down")
	_, ok := cache.Get(ctx, "anything")
	require.False(t, ok)
	cache.Set(ctx, intake.Specimen{Accession: "acc"}) // must not panic
}
