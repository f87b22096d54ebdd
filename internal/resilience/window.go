package resilience

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Sample is a single recorded operation duration. Immutable once recorded.
type Sample struct {
	DurationMs float64
	At         time.Time
	Metadata   map[string]string
}

// Stats summarises the live samples of one operation.
type Stats struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Window keeps per-operation duration samples inside a trailing retention
// interval. Appends are O(1); reads never observe a sample older than the
// retention at the moment of the read.
type Window struct {
	mu        sync.Mutex
	retention time.Duration
	samples   map[string][]Sample
}

// NewWindow constructs a metric window with the given retention.
func NewWindow(retention time.Duration) *Window {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Window{
		retention: retention,
		samples:   make(map[string][]Sample),
	}
}

// Retention returns the trailing interval samples are kept for.
func (w *Window) Retention() time.Duration {
	return w.retention
}

// Record appends one duration sample for the operation.
func (w *Window) Record(operationID string, durationMs float64, metadata map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[operationID] = append(w.samples[operationID], Sample{
		DurationMs: durationMs,
		At:         time.Now(),
		Metadata:   metadata,
	})
}

// Stats computes statistics over the live samples of one operation. It
// returns nil when no sample remains inside the retention window.
func (w *Window) Stats(operationID string) *Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	live := w.evictLocked(operationID)
	if len(live) == 0 {
		return nil
	}
	return computeStats(live)
}

// AllStats returns statistics for every operation with at least one live
// sample.
func (w *Window) AllStats() map[string]*Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]*Stats)
	for id := range w.samples {
		if live := w.evictLocked(id); len(live) > 0 {
			out[id] = computeStats(live)
		}
	}
	return out
}

// Purge drops expired samples eagerly. The shutdown coordinator runs this on
// a schedule so idle operations do not pin memory until the next read.
func (w *Window) Purge() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.samples {
		w.evictLocked(id)
	}
}

// evictLocked drops samples older than the retention cutoff and returns the
// surviving slice. Operations left empty are removed from the map.
func (w *Window) evictLocked(operationID string) []Sample {
	all := w.samples[operationID]
	if len(all) == 0 {
		return nil
	}
	cutoff := time.Now().Add(-w.retention)
	keep := all[:0]
	for _, s := range all {
		if !s.At.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	if len(keep) == 0 {
		delete(w.samples, operationID)
		return nil
	}
	w.samples[operationID] = keep
	return keep
}

func computeStats(samples []Sample) *Stats {
	durations := make([]float64, len(samples))
	sum := 0.0
	for i, s := range samples {
		durations[i] = s.DurationMs
		sum += s.DurationMs
	}
	sort.Float64s(durations)
	return &Stats{
		Count: len(durations),
		Avg:   sum / float64(len(durations)),
		Min:   durations[0],
		Max:   durations[len(durations)-1],
		P50:   percentile(durations, 0.50),
		P90:   percentile(durations, 0.90),
		P95:   percentile(durations, 0.95),
		P99:   percentile(durations, 0.99),
	}
}

// percentile interpolates linearly over the sorted durations: the real index
// is p*(n-1) and the result blends the two surrounding samples by the
// fractional part.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
