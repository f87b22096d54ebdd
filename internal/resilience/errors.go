package resilience

import "errors"

// ErrOpenCircuit is returned when the circuit breaker refuses a call and no
// fallback is configured.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// ErrProbeTimeout marks a dependency probe that exceeded its own timeout.
var ErrProbeTimeout = errors.New("resilience: dependency probe timed out")

// ErrShutdownTimeout indicates the drain phase exceeded its timeout and the
// process must terminate forcefully.
var ErrShutdownTimeout = errors.New("resilience: shutdown drain timed out")
