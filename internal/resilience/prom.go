package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	// BreakerStateGauge tracks the current state of every breaker.
	BreakerStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "breaker_state",
			Help: "Current breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"operation"},
	)
	// BreakerTransitions counts breaker state transitions.
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_transition_total",
			Help: "Count of breaker state transitions",
		},
		[]string{"operation", "from", "to"},
	)
	// BreakerOpenedTotal counts entries into the open state.
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "breaker_open_total",
			Help: "Number of times a breaker transitioned into open state",
		},
		[]string{"operation"},
	)
	// DependencyUp reports the last known status of each monitored dependency.
	DependencyUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_up",
			Help: "Last probe result per dependency: 1=healthy,0=unhealthy,-1=unknown",
		},
		[]string{"dependency"},
	)
)

func init() {
	prometheus.MustRegister(BreakerStateGauge, BreakerTransitions, BreakerOpenedTotal, DependencyUp)
}

func recordBreakerState(name string, state State) {
	if BreakerStateGauge == nil {
		return
	}
	BreakerStateGauge.WithLabelValues(name).Set(stateGaugeValue(state))
}

func recordBreakerTransition(name string, from, to State) {
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}
	if to == Open && BreakerOpenedTotal != nil {
		BreakerOpenedTotal.WithLabelValues(name).Inc()
	}
}

func recordDependencyStatus(name string, status DependencyStatus) {
	if DependencyUp == nil {
		return
	}
	switch status {
	case StatusHealthy:
		DependencyUp.WithLabelValues(name).Set(1)
	case StatusUnhealthy:
		DependencyUp.WithLabelValues(name).Set(0)
	default:
		DependencyUp.WithLabelValues(name).Set(-1)
	}
}

func stateGaugeValue(state State) float64 {
	switch state {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}
