package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BreakerSettings carry the shared defaults applied to breakers created by a
// registry.
type BreakerSettings struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Registry owns the mapping of operation name to circuit breaker. Breakers
// are created lazily on first use and live for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	settings BreakerSettings
	window   *Window
	logger   zerolog.Logger
}

// NewRegistry constructs a breaker registry. All breakers it creates share
// the given settings and record into the given window (which may be nil).
func NewRegistry(settings BreakerSettings, window *Window, logger zerolog.Logger) *Registry {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = 60 * time.Second
	}
	return &Registry{
		breakers: make(map[string]*Breaker),
		settings: settings,
		window:   window,
		logger:   logger,
	}
}

// Get returns the breaker for the named operation, creating it on first use.
// Concurrent callers for the same name always observe the same instance.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, r.settings.FailureThreshold, r.settings.ResetTimeout).
		WithWindow(r.window).
		WithLogger(r.logger)
	r.breakers[name] = b
	return b
}

// Call routes the operation through the named breaker.
func (r *Registry) Call(ctx context.Context, name string, op Operation, fallback Fallback) error {
	return r.Get(name).Call(ctx, op, fallback)
}

// Snapshot exports every registered breaker, sorted by name for stable
// health payloads.
func (r *Registry) Snapshot() []BreakerSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BreakerSnapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
