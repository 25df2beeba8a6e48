package metrics

import "github.com/prometheus/client_golang/prometheus"

// LedgerMetrics counts quantity-ledger outcomes.
type LedgerMetrics struct {
	conflicts *prometheus.CounterVec
	rejected  *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_version_conflicts_total",
		Help: "Optimistic version conflicts on inventory rows, labelled by operation.",
	}, []string{"operation"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_mutations_rejected_total",
		Help: "Inventory mutations rejected by the ledger invariant, labelled by operation.",
	}, []string{"operation"})
	reg.MustRegister(conflicts, rejected)
	return &LedgerMetrics{conflicts: conflicts, rejected: rejected}
}

// IncConflict records one lost compare-and-swap.
func (m *LedgerMetrics) IncConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncRejected records a mutation refused for lack of stock.
func (m *LedgerMetrics) IncRejected(operation string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(operation)).Inc()
}
