package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var breakerNopLogger = zerolog.Nop()

// State represents the current breaker state.
type State int

const (
	// Closed accepts all calls and counts consecutive failures.
	Closed State = iota
	// Open rejects calls until the reset timeout expires.
	Open
	// HalfOpen admits exactly one trial call to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Operation is the protected unit of work guarded by a breaker.
type Operation func(ctx context.Context) error

// Fallback runs in place of the operation when the breaker refuses the call.
type Fallback func(ctx context.Context) error

// BreakerSnapshot is a point-in-time view of a breaker exported by the
// health surface.
type BreakerSnapshot struct {
	Name         string `json:"-"`
	State        string `json:"state"`
	FailureCount int    `json:"failureCount"`
}

// Breaker guards a single named operation with a consecutive-failure state
// machine. The breaker never retries and never manufactures errors other
// than ErrOpenCircuit; operation errors pass through unchanged.
type Breaker struct {
	mu           sync.Mutex
	name         string
	state        State
	failures     int
	successes    int
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	trial        bool

	window *Window
	logger *zerolog.Logger
}

// NewBreaker constructs a breaker that opens once the configured number of
// consecutive failures is observed and probes for recovery after the reset
// timeout.
func NewBreaker(name string, threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:         name,
		state:        Closed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// WithWindow routes completed call durations into the given metric window.
func (b *Breaker) WithWindow(w *Window) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window = w
	return b
}

// WithLogger configures the logger used for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// Call executes op under the breaker contract. When the breaker is open (or
// a half-open trial is already in flight) the fallback runs if provided,
// otherwise ErrOpenCircuit is returned and op is never invoked. Every
// executed call, success or failure, is recorded as a duration sample under
// the breaker's name.
func (b *Breaker) Call(ctx context.Context, op Operation, fallback Fallback) error {
	admitted, isTrial := b.admit(ctx)
	if !admitted {
		if fallback != nil {
			return fallback(ctx)
		}
		return ErrOpenCircuit
	}

	start := time.Now()
	err := op(ctx)
	elapsed := time.Since(start)

	if w := b.settle(ctx, isTrial, err == nil); w != nil {
		w.Record(b.name, float64(elapsed)/float64(time.Millisecond), nil)
	}
	return err
}

// State returns the current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counts returns the current failure and success counters.
func (b *Breaker) Counts() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.successes
}

// Snapshot exports the breaker for health reporting.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{Name: b.name, State: b.state.String(), FailureCount: b.failures}
}

// admit decides under the breaker mutex whether the call may execute and
// whether it is the half-open trial. At most one trial is ever in flight;
// callers arriving while a trial is outstanding are refused as if the
// breaker were still open.
func (b *Breaker) admit(ctx context.Context) (admitted, isTrial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true, false
	case Open:
		if time.Since(b.lastFailure) >= b.resetTimeout {
			b.transitionLocked(ctx, HalfOpen)
			b.trial = true
			return true, true
		}
		return false, false
	case HalfOpen:
		if b.trial {
			return false, false
		}
		b.trial = true
		return true, true
	default:
		return false, false
	}
}

// settle applies the success/failure transition after an executed call and
// returns the window the completed call should be recorded into.
func (b *Breaker) settle(ctx context.Context, isTrial, success bool) *Window {
	b.mu.Lock()
	defer b.mu.Unlock()

	if isTrial {
		b.trial = false
		if success {
			b.transitionLocked(ctx, Closed)
		} else {
			b.lastFailure = time.Now()
			b.transitionLocked(ctx, Open)
		}
		return b.window
	}

	if success {
		b.successes++
		if b.state == Closed {
			b.failures = 0
		}
		return b.window
	}
	b.failures++
	b.lastFailure = time.Now()
	if b.state == Closed && b.failures >= b.threshold {
		b.transitionLocked(ctx, Open)
	}
	return b.window
}

func (b *Breaker) transitionLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	if next == Closed {
		b.failures = 0
	}
	recordBreakerState(b.name, next)
	recordBreakerTransition(b.name, prev, next)
	b.loggerFor(ctx).Info().
		Str("breaker", b.name).
		Str("from_state", prev.String()).
		Str("to_state", next.String()).
		Msg("breaker_transition")
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if b.logger == nil {
		return &breakerNopLogger
	}
	return b.logger
}
