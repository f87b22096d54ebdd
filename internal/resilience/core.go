package resilience

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ReadyState is the process readiness phase.
type ReadyState int32

const (
	// NotReady is the start-up phase before the first successful sweep.
	NotReady ReadyState = iota
	// Ready means the service accepts work.
	Ready
	// Draining means shutdown started; in-flight work may finish but no new
	// work is accepted.
	Draining
	// Stopped means the drain completed or was forced.
	Stopped
)

func (s ReadyState) String() string {
	switch s {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Overall service status values reported by Health.
const (
	StatusOK       = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "unhealthy"
)

// HealthReport is the rich health view: overall status plus the full
// per-dependency and per-breaker picture. Computed fresh on every call.
type HealthReport struct {
	Status        string                        `json:"status"`
	Service       string                        `json:"service"`
	UptimeSeconds float64                       `json:"uptime"`
	Dependencies  map[string]DependencySnapshot `json:"dependencies"`
	Breakers      map[string]BreakerSnapshot    `json:"breakers"`
	Timestamp     time.Time                     `json:"timestamp"`
}

// ReadinessReport is the readiness view consumed by orchestrators.
type ReadinessReport struct {
	Ready  bool                        `json:"ready"`
	Checks map[string]DependencyStatus `json:"checks"`
}

// LivenessReport only proves the process is responsive.
type LivenessReport struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime"`
}

// Core composes the dependency monitor, breaker registry and metric window
// into the service health surface. One instance is constructed at start-up
// and threaded through explicitly; there is no ambient global state.
type Core struct {
	service  string
	started  time.Time
	state    atomic.Int32
	monitor  *Monitor
	breakers *Registry
	window   *Window
	logger   zerolog.Logger
}

// NewCore builds the health aggregator for the named service.
func NewCore(service string, monitor *Monitor, breakers *Registry, window *Window, logger zerolog.Logger) *Core {
	return &Core{
		service:  service,
		started:  time.Now(),
		monitor:  monitor,
		breakers: breakers,
		window:   window,
		logger:   logger,
	}
}

// Monitor exposes the dependency monitor for registration at start-up.
func (c *Core) Monitor() *Monitor { return c.monitor }

// Breakers exposes the breaker registry for protected calls.
func (c *Core) Breakers() *Registry { return c.breakers }

// Window exposes the metric window for direct duration recording.
func (c *Core) Window() *Window { return c.window }

// ReadyState returns the current readiness phase.
func (c *Core) ReadyState() ReadyState {
	return ReadyState(c.state.Load())
}

// Uptime reports how long the process has been up.
func (c *Core) Uptime() time.Duration {
	return time.Since(c.started)
}

// MarkReady moves not_ready to ready, but only once every required
// dependency has a healthy last-known status. It reports whether the
// service is ready afterwards.
func (c *Core) MarkReady() bool {
	if c.ReadyState() == Ready {
		return true
	}
	if !c.monitor.RequiredHealthy() {
		return false
	}
	if c.state.CompareAndSwap(int32(NotReady), int32(Ready)) {
		c.logger.Info().Str("service", c.service).Msg("service_ready")
	}
	return c.ReadyState() == Ready
}

// BeginDrain moves ready to draining. New inbound work is rejected from
// this point on.
func (c *Core) BeginDrain() {
	if c.state.CompareAndSwap(int32(Ready), int32(Draining)) ||
		c.state.CompareAndSwap(int32(NotReady), int32(Draining)) {
		c.logger.Info().Str("service", c.service).Msg("service_draining")
	}
}

// MarkStopped records the terminal state after the drain finished or was
// forced.
func (c *Core) MarkStopped() {
	c.state.Store(int32(Stopped))
}

// Liveness never consults dependencies; it only proves the process is
// responsive.
func (c *Core) Liveness() LivenessReport {
	return LivenessReport{Status: "alive", UptimeSeconds: c.Uptime().Seconds()}
}

// Readiness reports ready iff the service finished start-up and every
// required dependency's last known status is healthy.
func (c *Core) Readiness() ReadinessReport {
	deps := c.monitor.Snapshot()
	checks := make(map[string]DependencyStatus, len(deps))
	for _, d := range deps {
		checks[d.Name] = d.Status
	}
	return ReadinessReport{
		Ready:  c.ReadyState() == Ready && c.monitor.RequiredHealthy(),
		Checks: checks,
	}
}

// Health assembles the full report. The service is unhealthy when it is not
// ready or a required dependency is down; a down optional dependency or an
// open breaker degrades the status to warning.
func (c *Core) Health() HealthReport {
	deps := c.monitor.Snapshot()
	dependencies := make(map[string]DependencySnapshot, len(deps))
	status := StatusOK
	for _, d := range deps {
		dependencies[d.Name] = d
		if d.Status == StatusHealthy {
			continue
		}
		if d.Required {
			status = StatusCritical
		} else if status == StatusOK {
			status = StatusWarning
		}
	}

	snaps := c.breakers.Snapshot()
	breakers := make(map[string]BreakerSnapshot, len(snaps))
	for _, b := range snaps {
		breakers[b.Name] = b
		if b.State == Open.String() && status == StatusOK {
			status = StatusWarning
		}
	}

	if c.ReadyState() != Ready {
		status = StatusCritical
	}

	return HealthReport{
		Status:        status,
		Service:       c.service,
		UptimeSeconds: c.Uptime().Seconds(),
		Dependencies:  dependencies,
		Breakers:      breakers,
		Timestamp:     time.Now().UTC(),
	}
}

// Metrics exports the live operation statistics. Absent data yields an
// empty map, never an error.
func (c *Core) Metrics() map[string]*Stats {
	if c.window == nil {
		return map[string]*Stats{}
	}
	return c.window.AllStats()
}
