package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/labforge/intake-api/internal/resilience"
)

func newTestRegistry(threshold int) *resilience.Registry {
	return resilience.NewRegistry(resilience.BreakerSettings{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
	}, resilience.NewWindow(time.Minute), zerolog.Nop())
}

func TestRegistryGetReturnsSameInstance(t *testing.T) {
	registry := newTestRegistry(3)

	const n = 16
	out := make([]*resilience.Breaker, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = registry.Get("db.specimens.create")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, out[0], out[i])
	}
}

func TestRegistryCallTripsNamedBreaker(t *testing.T) {
	registry := newTestRegistry(2)
	ctx := context.Background()
	errDown := errors.New("db down")

	op := func(context.Context) error { return errDown }
	require.ErrorIs(t, registry.Call(ctx, "db.specimens.get", op, nil), errDown)
	require.ErrorIs(t, registry.Call(ctx, "db.specimens.get", op, nil), errDown)
	require.ErrorIs(t, registry.Call(ctx, "db.specimens.get", op, nil), resilience.ErrOpenCircuit)

	// Other operations keep their own breaker and stay closed.
	require.NoError(t, registry.Call(ctx, "db.specimens.list", func(context.Context) error { return nil }, nil))
}

func TestRegistrySnapshotSorted(t *testing.T) {
	registry := newTestRegistry(3)
	registry.Get("redis.cache.get")
	registry.Get("db.specimens.create")

	snaps := registry.Snapshot()
	require.Len(t, snaps, 2)
	require.Equal(t, "db.specimens.create", snaps[0].Name)
	require.Equal(t, "redis.cache.get", snaps[1].Name)
	require.Equal(t, "closed", snaps[0].State)
}

func TestRegistryDefaultThreshold(t *testing.T) {
	registry := resilience.NewRegistry(resilience.BreakerSettings{}, nil, zerolog.Nop())
	ctx := context.Background()
	errDown := errors.New("down")
	op := func(context.Context) error { return errDown }

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, registry.Call(ctx, "op", op, nil), errDown)
	}
	require.Equal(t, resilience.Closed, registry.Get("op").State())

	require.ErrorIs(t, registry.Call(ctx, "op", op, nil), errDown)
	require.Equal(t, resilience.Open, registry.Get("op").State())
}
