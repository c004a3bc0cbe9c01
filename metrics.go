package main

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pool_registry_importer"

// Metrics are collected on a private registry so repeated runs in one
// process (tests) never collide.
type Metrics struct {
	registry     *prometheus.Registry
	transactions *prometheus.CounterVec
	pools        *prometheus.CounterVec
	gauges       *prometheus.CounterVec
	feesEther    prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transactions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_total",
			Help:      "Registry transactions issued, by method.",
		}, []string{"method"}),
		pools: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pools_total",
			Help:      "Pools processed, by result (added, skipped).",
		}, []string{"result"}),
		gauges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "gauge_syncs_total",
			Help:      "Gauge reconciliations, by result (updated, current).",
		}, []string{"result"}),
		feesEther: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fees_ether_total",
			Help:      "Ether spent on mined registry transactions.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeTx(method string, feeWei *big.Int) {
	m.transactions.WithLabelValues(method).Inc()
	if feeWei != nil && feeWei.Sign() > 0 {
		f, _ := new(big.Float).Quo(new(big.Float).SetInt(feeWei), big.NewFloat(1e18)).Float64()
		m.feesEther.Add(f)
	}
}

func (m *Metrics) observePool(result string) {
	m.pools.WithLabelValues(result).Inc()
}

func (m *Metrics) observeGauges(result string) {
	m.gauges.WithLabelValues(result).Inc()
}

// WriteTextfile dumps the metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
