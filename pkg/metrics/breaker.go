package metrics

import "github.com/prometheus/client_golang/prometheus"

// Breaker states as exported on the gauge.
const (
	BreakerClosed   float64 = 0
	BreakerHalfOpen float64 = 1
	BreakerOpen     float64 = 2
)

// BreakerMetrics exports the state of outbound circuit breakers.
type BreakerMetrics struct {
	state *prometheus.GaugeVec
}

// NewBreakerMetrics registers the breaker gauge on the provided registerer.
func NewBreakerMetrics(reg prometheus.Registerer) *BreakerMetrics {
	if reg == nil {
		return &BreakerMetrics{}
	}
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})
	reg.MustRegister(state)
	return &BreakerMetrics{state: state}
}

// SetState records the current state value for the named breaker.
func (m *BreakerMetrics) SetState(name string, value float64) {
	if m == nil || m.state == nil {
		return
	}
	m.state.WithLabelValues(normalizeLabel(name)).Set(value)
}
