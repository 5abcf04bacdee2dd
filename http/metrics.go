package http

import (
	"github.com/ethvault/slashing-protector/protector"
	"github.com/prometheus/client_golang/prometheus"
)

// metrics is the Prometheus surface of the HTTP layer, replacing the
// teacher's ad hoc AcquiredConns JSON blob with real counters/gauges a
// scraper can graph.
type metrics struct {
	decisions *prometheus.CounterVec
	poolSize  prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, poolSize func() int) *metrics {
	m := &metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slashing_protector",
			Name:      "decisions_total",
			Help:      "Attestation/block decisions, labeled by request kind and outcome classification.",
		}, []string{"kind", "outcome"}),
	}
	m.poolSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "slashing_protector",
		Name:      "open_validator_connections",
		Help:      "Number of distinct (network, validator) bbolt connections currently open.",
	}, func() float64 { return float64(poolSize()) })

	reg.MustRegister(m.decisions, m.poolSize)
	return m
}

func (m *metrics) observe(requestKind string, o protector.Outcome) {
	label := string(o.Reason)
	if !o.IsSafe() {
		label = string(o.Kind)
	}
	m.decisions.WithLabelValues(requestKind, label).Inc()
}
