// Package metrics exposes Prometheus collectors for processed commands,
// enqueued transfers, and outbox dispatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/roach88/rwamarket/internal/engine"
	"github.com/roach88/rwamarket/internal/ledger"
)

const namespace = "rwamarket"

// Command outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Dispatch outcomes.
const (
	DispatchDelivered = "delivered"
	DispatchRetrying  = "retrying"
	DispatchFailed    = "failed"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	enqueued    *prometheus.CounterVec
	dispatched  *prometheus.CounterVec
	outboxDepth *prometheus.GaugeVec
}

var _ engine.Observer = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Commands processed, by operation kind and outcome.",
		}, []string{"kind", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected commands by error code.",
		}, []string{"code"}),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_enqueued_total",
			Help:      "Transfer instructions decided by accepted commands.",
		}, []string{"type"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_dispatched_total",
			Help:      "Outbox delivery attempts by transfer type and outcome.",
		}, []string{"type", "outcome"}),
		outboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_transfers",
			Help:      "Outbox rows by status, sampled after each dispatch pass.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.operations,
		m.rejections,
		m.enqueued,
		m.dispatched,
		m.outboxDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCommand implements engine.Observer.
func (m *Metrics) ObserveCommand(kind ledger.OperationKind, res engine.Result, err error) {
	switch {
	case err == nil:
		m.operations.WithLabelValues(string(kind), OutcomeAccepted).Inc()
		for _, t := range res.Transfers {
			m.enqueued.WithLabelValues(string(t.Kind())).Inc()
		}
	case ledger.IsRejection(err):
		m.operations.WithLabelValues(string(kind), OutcomeRejected).Inc()
		m.rejections.WithLabelValues(string(ledger.CodeOf(err))).Inc()
	default:
		m.operations.WithLabelValues(string(kind), OutcomeFailed).Inc()
	}
}

// ObserveDispatch counts one delivery attempt.
func (m *Metrics) ObserveDispatch(kind ledger.TransferKind, outcome string) {
	m.dispatched.WithLabelValues(string(kind), outcome).Inc()
}

// SetOutboxDepth records the number of outbox rows in status.
func (m *Metrics) SetOutboxDepth(status string, n int) {
	m.outboxDepth.WithLabelValues(status).Set(float64(n))
}
