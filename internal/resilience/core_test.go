package resilience_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/labforge/intake-api/internal/resilience"
)

func newTestCore() *resilience.Core {
	window := resilience.NewWindow(time.Minute)
	registry := resilience.NewRegistry(resilience.BreakerSettings{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}, window, zerolog.Nop())
	monitor := resilience.NewMonitor(zerolog.Nop())
	return resilience.NewCore("intake-api", monitor, registry, window, zerolog.Nop())
}

func TestCoreReadinessGatedOnRequiredDependency(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	var dbUp atomic.Bool
	core.Monitor().Register("postgres", func(context.Context) error {
		if dbUp.Load() {
			return nil
		}
		return errors.New("connect refused")
	}, true, time.Second)

	core.Monitor().CheckAll(ctx)
	require.False(t, core.MarkReady())
	require.Equal(t, resilience.NotReady, core.ReadyState())
	require.False(t, core.Readiness().Ready)
	require.Equal(t, resilience.StatusCritical, core.Health().Status)

	dbUp.Store(true)
	core.Monitor().CheckAll(ctx)
	require.True(t, core.MarkReady())
	require.True(t, core.Readiness().Ready)

	health := core.Health()
	require.Equal(t, resilience.StatusOK, health.Status)
	require.Equal(t, "intake-api", health.Service)
	require.Equal(t, resilience.StatusHealthy, health.Dependencies["postgres"].Status)
}

func TestCoreOptionalDependencyDegradesToWarning(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	core.Monitor().Register("postgres", func(context.Context) error { return nil }, true, time.Second)
	core.Monitor().Register("redis", func(context.Context) error {
		return errors.New("connection pool exhausted")
	}, false, time.Second)

	core.Monitor().CheckAll(ctx)
	require.True(t, core.MarkReady())

	health := core.Health()
	require.Equal(t, resilience.StatusWarning, health.Status)
	require.True(t, core.Readiness().Ready, "optional dependencies never gate readiness")
}

func TestCoreOpenBreakerDegradesToWarning(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	core.Monitor().Register("postgres", func(context.Context) error { return nil }, true, time.Second)
	core.Monitor().CheckAll(ctx)
	require.True(t, core.MarkReady())

	errDown := errors.New("query timeout")
	op := func(context.Context) error { return errDown }
	require.ErrorIs(t, core.Breakers().Call(ctx, "db.specimens.get", op, nil), errDown)
	require.ErrorIs(t, core.Breakers().Call(ctx, "db.specimens.get", op, nil), errDown)

	health := core.Health()
	require.Equal(t, resilience.StatusWarning, health.Status)
	require.Equal(t, "open", health.Breakers["db.specimens.get"].State)
	require.Equal(t, 2, health.Breakers["db.specimens.get"].FailureCount)
}

func TestCoreDrainLifecycle(t *testing.T) {
	core := newTestCore()
	ctx := context.Background()

	core.Monitor().CheckAll(ctx)
	require.True(t, core.MarkReady(), "no required dependencies means ready")

	core.BeginDrain()
	require.Equal(t, resilience.Draining, core.ReadyState())
	require.False(t, core.Readiness().Ready)
	require.Equal(t, resilience.StatusCritical, core.Health().Status)

	core.MarkStopped()
	require.Equal(t, "stopped", core.ReadyState().String())
}

func TestCoreLivenessIgnoresDependencies(t *testing.T) {
	core := newTestCore()
	core.Monitor().Register("postgres", func(context.Context) error {
		return errors.New("down")
	}, true, time.Second)
	core.Monitor().CheckAll(context.Background())

	live := core.Liveness()
	require.Equal(t, "alive", live.Status)
	require.GreaterOrEqual(t, live.UptimeSeconds, 0.0)
}

func TestCoreMetricsEmptyWithoutSamples(t *testing.T) {
	core := newTestCore()
	require.Empty(t, core.Metrics())

	core.Window().Record("db.specimens.list", 42, nil)
	metrics := core.Metrics()
	require.Len(t, metrics, 1)
	require.Equal(t, 42.0, metrics["db.specimens.list"].Max)
}
