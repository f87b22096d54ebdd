package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Probe checks whether an external dependency is reachable. Implementations
// must honour the context deadline.
type Probe func(ctx context.Context) error

// DependencyStatus is the last observed health of a dependency.
type DependencyStatus string

const (
	// StatusUnknown is the status before the first completed probe cycle.
	StatusUnknown DependencyStatus = "unknown"
	// StatusHealthy means the most recent probe succeeded.
	StatusHealthy DependencyStatus = "healthy"
	// StatusUnhealthy means the most recent probe failed or timed out.
	StatusUnhealthy DependencyStatus = "unhealthy"
)

// DependencySnapshot is the exported view of one monitored dependency.
type DependencySnapshot struct {
	Name      string           `json:"-"`
	Status    DependencyStatus `json:"status"`
	Required  bool             `json:"required"`
	LastCheck time.Time        `json:"lastCheck"`
	Error     string           `json:"error,omitempty"`
}

type dependency struct {
	name     string
	probe    Probe
	required bool
	timeout  time.Duration

	status    DependencyStatus
	lastCheck time.Time
	lastErr   string
	cycle     uint64
}

// Monitor keeps a live health picture of named external dependencies. Each
// sweep probes every dependency concurrently, each probe bounded by its own
// timeout, so one slow dependency never blocks the rest.
type Monitor struct {
	mu     sync.RWMutex
	deps   map[string]*dependency
	cycle  atomic.Uint64
	logger zerolog.Logger
}

// NewMonitor constructs an empty dependency monitor.
func NewMonitor(logger zerolog.Logger) *Monitor {
	return &Monitor{
		deps:   make(map[string]*dependency),
		logger: logger,
	}
}

// Register adds a dependency under the given name. Registration is
// idempotent by name; the first registration wins and seeds the status as
// unknown.
func (m *Monitor) Register(name string, probe Probe, required bool, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deps[name]; ok {
		return
	}
	m.deps[name] = &dependency{
		name:     name,
		probe:    probe,
		required: required,
		timeout:  timeout,
		status:   StatusUnknown,
	}
	recordDependencyStatus(name, StatusUnknown)
}

// CheckAll runs one probe cycle: every registered dependency is probed
// concurrently and the call returns once all probes completed or timed out,
// so the wall-clock cost is the maximum individual timeout, not the sum.
// A probe result is committed at most once per cycle and never overwrites
// the result of a later-started cycle.
func (m *Monitor) CheckAll(ctx context.Context) {
	seq := m.cycle.Add(1)

	m.mu.RLock()
	targets := make([]*dependency, 0, len(m.deps))
	for _, d := range m.deps {
		targets = append(targets, d)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, d := range targets {
		wg.Add(1)
		go func(d *dependency) {
			defer wg.Done()
			m.commit(d.name, seq, m.probeOne(ctx, d))
		}(d)
	}
	wg.Wait()
}

// probeOne runs a single bounded probe. A probe still running when its
// timeout fires is abandoned; the timeout becomes the cycle's result.
func (m *Monitor) probeOne(ctx context.Context, d *dependency) error {
	pctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.probe(pctx)
	}()

	select {
	case <-pctx.Done():
		return fmt.Errorf("%w: %s after %s", ErrProbeTimeout, d.name, d.timeout)
	case err := <-done:
		return err
	}
}

// commit writes one probe result, guarded by the cycle sequence number so a
// straggler from an older sweep cannot clobber fresher state.
func (m *Monitor) commit(name string, seq uint64, probeErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.deps[name]
	if !ok || seq < d.cycle {
		return
	}
	d.cycle = seq
	d.lastCheck = time.Now()
	if probeErr == nil {
		d.status = StatusHealthy
		d.lastErr = ""
		recordDependencyStatus(name, StatusHealthy)
		return
	}
	d.status = StatusUnhealthy
	d.lastErr = probeErr.Error()
	recordDependencyStatus(name, StatusUnhealthy)

	evt := m.logger.Warn()
	if d.required {
		evt = m.logger.Error()
	}
	evt.Str("dependency", name).
		Bool("required", d.required).
		Err(probeErr).
		Msg("dependency_unhealthy")
}

// RequiredHealthy reports whether every required dependency's last known
// status is healthy.
func (m *Monitor) RequiredHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.deps {
		if d.required && d.status != StatusHealthy {
			return false
		}
	}
	return true
}

// Snapshot exports every dependency, sorted by name.
func (m *Monitor) Snapshot() []DependencySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DependencySnapshot, 0, len(m.deps))
	for _, d := range m.deps {
		out = append(out, DependencySnapshot{
			Name:      d.name,
			Status:    d.status,
			Required:  d.required,
			LastCheck: d.lastCheck,
			Error:     d.lastErr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
