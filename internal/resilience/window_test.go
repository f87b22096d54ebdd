package resilience_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/labforge/intake-api/internal/resilience"
)

func TestWindowStatsFixture(t *testing.T) {
	window := resilience.NewWindow(time.Minute)
	for _, ms := range []float64{10, 20, 30, 40, 50} {
		window.Record("db.query", ms, nil)
	}

	stats := window.Stats("db.query")
	if stats == nil {
		t.Fatal("expected stats for recorded operation")
	}
	require.Equal(t, 5, stats.Count)
	require.Equal(t, 10.0, stats.Min)
	require.Equal(t, 50.0, stats.Max)
	require.Equal(t, 30.0, stats.Avg)
	require.Equal(t, 30.0, stats.P50)
	require.InDelta(t, 46.0, stats.P90, 1e-9)
	require.InDelta(t, 48.0, stats.P95, 1e-9)
	require.InDelta(t, 49.6, stats.P99, 1e-9)
}

func TestWindowSingleSample(t *testing.T) {
	window := resilience.NewWindow(time.Minute)
	window.Record("cache.get", 7.5, nil)

	stats := window.Stats("cache.get")
	require.NotNil(t, stats)
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 7.5, stats.Min)
	require.Equal(t, 7.5, stats.Max)
	require.Equal(t, 7.5, stats.P50)
	require.Equal(t, 7.5, stats.P99)
}

func TestWindowUnknownOperation(t *testing.T) {
	window := resilience.NewWindow(time.Minute)
	require.Nil(t, window.Stats("never.recorded"))
}

func TestWindowRetentionEviction(t *testing.T) {
	window := resilience.NewWindow(50 * time.Millisecond)
	window.Record("db.query", 12, nil)

	time.Sleep(80 * time.Millisecond)
	require.Nil(t, window.Stats("db.query"), "expired samples must not contribute")

	window.Record("db.query", 99, nil)
	stats := window.Stats("db.query")
	require.NotNil(t, stats)
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 99.0, stats.Min)
}

func TestWindowPurgeDropsEmptyOperations(t *testing.T) {
	window := resilience.NewWindow(30 * time.Millisecond)
	window.Record("old.op", 5, nil)
	time.Sleep(50 * time.Millisecond)
	window.Record("live.op", 8, nil)

	window.Purge()

	all := window.AllStats()
	require.Len(t, all, 1)
	require.Contains(t, all, "live.op")
}

func TestWindowAllStats(t *testing.T) {
	window := resilience.NewWindow(time.Minute)
	window.Record("op.a", 10, nil)
	window.Record("op.a", 20, nil)
	window.Record("op.b", 100, map[string]string{"source": "probe"})

	all := window.AllStats()
	require.Len(t, all, 2)
	require.Equal(t, 2, all["op.a"].Count)
	require.Equal(t, 15.0, all["op.a"].Avg)
	require.Equal(t, 100.0, all["op.b"].Max)
}

func TestWindowConcurrentRecord(t *testing.T) {
	window := resilience.NewWindow(time.Minute)

	const writers = 10
	const perWriter = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			op := fmt.Sprintf("op.%d", n%2)
			for j := 0; j < perWriter; j++ {
				window.Record(op, float64(j), nil)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, s := range window.AllStats() {
		total += s.Count
	}
	require.Equal(t, writers*perWriter, total)
}
