package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports resilience state. A nil *Metrics records nothing.
type Metrics struct {
	bulkheadInFlight   *prometheus.GaugeVec
	bulkheadRejected   *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	breakerRejected    *prometheus.CounterVec
	rateLimitDecisions *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bulkheadInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "restbucks",
			Name:      "bulkhead_in_flight",
			Help:      "Calls currently holding a bulkhead permit.",
		}, []string{"name"}),
		bulkheadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restbucks",
			Name:      "bulkhead_rejected_total",
			Help:      "Calls rejected because the bulkhead was full.",
		}, []string{"name"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "restbucks",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open).",
		}, []string{"name"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restbucks",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"name", "from", "to"}),
		breakerRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restbucks",
			Name:      "circuit_breaker_rejected_total",
			Help:      "Calls rejected by an open circuit breaker.",
		}, []string{"name"}),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restbucks",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.bulkheadInFlight,
			m.bulkheadRejected,
			m.breakerState,
			m.breakerTransitions,
			m.breakerRejected,
			m.rateLimitDecisions,
		)
	}
	return m
}

func (m *Metrics) setInFlight(name string, n int64) {
	if m == nil {
		return
	}
	m.bulkheadInFlight.WithLabelValues(name).Set(float64(n))
}

func (m *Metrics) bulkheadRejection(name string) {
	if m == nil {
		return
	}
	m.bulkheadRejected.WithLabelValues(name).Inc()
}

func (m *Metrics) breakerTransition(name string, from, to State) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(to))
	m.breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

func (m *Metrics) breakerRejection(name string) {
	if m == nil {
		return
	}
	m.breakerRejected.WithLabelValues(name).Inc()
}

func (m *Metrics) rateLimitDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	m.rateLimitDecisions.WithLabelValues(result).Inc()
}
