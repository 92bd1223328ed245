// Package metrics exposes Prometheus metrics for the workflow and the
// persistence layer.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

const namespace = "inventario"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	transitions *prometheus.CounterVec
	pending     *prometheus.GaugeVec
	items       *prometheus.GaugeVec
	overdue     prometheus.Gauge
	version     prometheus.Gauge
	saves       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Workflow operations by kind, action type and outcome.",
		}, []string{"kind", "action_type", "outcome"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_records",
			Help:      "Records waiting for a decision, by collection.",
		}, []string{"collection"}),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "item_units",
			Help:      "Inventory units by item status.",
		}, []string{"status"}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overdue_loans",
			Help:      "Loans past their due date.",
		}),
		version: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Version of the current state snapshot.",
		}),
		saves: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "state_save_seconds",
			Help:      "Time spent persisting a committed snapshot.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
	}
	m.reg.MustRegister(
		m.transitions, m.pending, m.items, m.overdue, m.version, m.saves,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Transition counts one workflow operation.
func (m *Metrics) Transition(kind, actionType, outcome string) {
	m.transitions.WithLabelValues(kind, actionType, outcome).Inc()
}

// Observe refreshes the gauges from a snapshot. Pass it to Store.Subscribe.
func (m *Metrics) Observe(st *state.State) {
	var tasks, requests, access int
	for _, t := range st.Tasks {
		if t.Pending() {
			tasks++
		}
	}
	for _, r := range st.Requests {
		if r.Pending() {
			requests++
		}
	}
	for _, a := range st.AccessRequests {
		if a.Status == model.RequestStatusPending {
			access++
		}
	}
	m.pending.WithLabelValues("tasks").Set(float64(tasks))
	m.pending.WithLabelValues("requests").Set(float64(requests))
	m.pending.WithLabelValues("access_requests").Set(float64(access))

	units := make(map[string]int, len(model.ItemStatuses))
	for _, s := range model.ItemStatuses {
		units[s] = 0
	}
	for _, it := range st.Items {
		units[it.Status] += it.Quantity
	}
	for s, n := range units {
		m.items.WithLabelValues(s).Set(float64(n))
	}

	var overdue int
	for _, l := range st.Loans {
		if l.Status == model.LoanStatusOverdue {
			overdue++
		}
	}
	m.overdue.Set(float64(overdue))
	m.version.Set(float64(st.Version))
}

// Instrument wraps p so every save is timed. The wrapper still loads when p
// does.
func (m *Metrics) Instrument(p state.Persister) state.Persister {
	t := &timedPersister{next: p, hist: m.saves}
	if l, ok := p.(state.Loader); ok {
		return &timedLoader{timedPersister: t, Loader: l}
	}
	return t
}

type timedLoader struct {
	*timedPersister
	state.Loader
}

type timedPersister struct {
	next state.Persister
	hist *prometheus.HistogramVec
}

func (t *timedPersister) Save(ctx context.Context, st *state.State, dirty []state.Bucket, events []state.Event) error {
	start := time.Now()
	err := t.next.Save(ctx, st, dirty, events)
	result := "ok"
	if err != nil {
		result = "error"
	}
	t.hist.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return err
}
