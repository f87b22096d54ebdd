package resilience_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/labforge/intake-api/internal/resilience"
)

func TestCoordinatorStartMarksReady(t *testing.T) {
	core := newTestCore()
	core.Monitor().Register("postgres", func(context.Context) error { return nil }, true, time.Second)

	coordinator := resilience.NewCoordinator(core, time.Minute, time.Second, zerolog.Nop())
	coordinator.Start(context.Background())
	require.Equal(t, resilience.Ready, core.ReadyState())

	require.NoError(t, coordinator.Shutdown(context.Background(), nil))
	require.Equal(t, resilience.Stopped, core.ReadyState())
}

func TestCoordinatorPeriodicSweep(t *testing.T) {
	core := newTestCore()

	var probes atomic.Int32
	core.Monitor().Register("postgres", func(context.Context) error {
		probes.Add(1)
		return nil
	}, true, time.Second)

	coordinator := resilience.NewCoordinator(core, 20*time.Millisecond, time.Second, zerolog.Nop())
	coordinator.Start(context.Background())
	defer func() { _ = coordinator.Shutdown(context.Background(), nil) }()

	require.Eventually(t, func() bool { return probes.Load() >= 3 }, time.Second, 5*time.Millisecond,
		"sweep loop must keep probing after the start-up sweep")
}

func TestCoordinatorSweepRecoversReadiness(t *testing.T) {
	core := newTestCore()

	var dbUp atomic.Bool
	core.Monitor().Register("postgres", func(context.Context) error {
		if dbUp.Load() {
			return nil
		}
		return context.DeadlineExceeded
	}, true, time.Second)

	coordinator := resilience.NewCoordinator(core, 15*time.Millisecond, time.Second, zerolog.Nop())
	coordinator.Start(context.Background())
	defer func() { _ = coordinator.Shutdown(context.Background(), nil) }()

	require.Equal(t, resilience.NotReady, core.ReadyState(), "failed start-up sweep keeps the service not ready")

	dbUp.Store(true)
	require.Eventually(t, func() bool { return core.ReadyState() == resilience.Ready },
		time.Second, 5*time.Millisecond)
}

func TestCoordinatorShutdownRunsDrain(t *testing.T) {
	core := newTestCore()
	coordinator := resilience.NewCoordinator(core, time.Minute, time.Second, zerolog.Nop())
	coordinator.Start(context.Background())

	var drains atomic.Int32
	drain := func(context.Context) error {
		drains.Add(1)
		return nil
	}
	require.NoError(t, coordinator.Shutdown(context.Background(), drain))
	require.Equal(t, int32(1), drains.Load())
	require.Equal(t, resilience.Stopped, core.ReadyState())

	// Shutdown is idempotent; a second call does not drain again.
	require.NoError(t, coordinator.Shutdown(context.Background(), drain))
	require.Equal(t, int32(1), drains.Load())
}

func TestCoordinatorShutdownDrainTimeout(t *testing.T) {
	core := newTestCore()
	coordinator := resilience.NewCoordinator(core, time.Minute, 50*time.Millisecond, zerolog.Nop())
	coordinator.Start(context.Background())

	drain := func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond) // connections refusing to close
		return ctx.Err()
	}
	err := coordinator.Shutdown(context.Background(), drain)
	require.ErrorIs(t, err, resilience.ErrShutdownTimeout)
	require.Equal(t, resilience.Draining, core.ReadyState(), "a timed-out drain never reaches stopped")
}
