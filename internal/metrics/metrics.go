// Package metrics exposes engine activity as Prometheus series:
//
//	exalted_outcomes_total{activity,status}  outcomes recorded per activity
//	exalted_orders_total{activity,side}      orders accepted by the brokerage
//	exalted_iterations_total{activity,result} finished or abandoned iterations
//	exalted_iteration_seconds{activity}      iteration wall time
//	exalted_scheduler_skips_total{activity}  firings skipped while still busy
//	exalted_trigger_drops_total              ingest wake-ups coalesced away
//	exalted_cursor                           last processed signal id
package metrics

import (
	"exalted/internal/trading"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "exalted"

// Metrics owns a private registry so tests and multiple instances do not
// collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	outcomes     *prometheus.CounterVec
	orders       *prometheus.CounterVec
	iterations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	skips        *prometheus.CounterVec
	triggerDrops prometheus.Counter
	cursor       prometheus.Gauge
	breakerOpen  *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Per-symbol outcomes by activity and status.",
		}, []string{"activity", "status"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders accepted by the brokerage.",
		}, []string{"activity", "side"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Activity iterations by result (completed|abandoned).",
		}, []string{"activity", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_seconds",
			Help:      "Wall time of one activity iteration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"activity"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skips_total",
			Help:      "Periodic firings skipped because the previous run was still going.",
		}, []string{"activity"}),
		triggerDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_drops_total",
			Help:      "Ingest wake-ups coalesced into an already pending one.",
		}),
		cursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor",
			Help:      "Highest processed signal id.",
		}),
		breakerOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 while the named circuit breaker is not closed.",
		}, []string{"name"}),
	}
	m.registry.MustRegister(
		m.outcomes, m.orders, m.iterations, m.duration,
		m.skips, m.triggerDrops, m.cursor, m.breakerOpen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveReport records one finished activity iteration.
func (m *Metrics) ObserveReport(r *trading.Report) {
	if m == nil || r == nil {
		return
	}
	for _, o := range r.Outcomes {
		activity := o.Activity
		if activity == "" {
			activity = r.Activity
		}
		m.outcomes.WithLabelValues(activity, string(o.Status)).Inc()
		if o.Status == trading.StatusSuccess && o.Order != nil {
			m.orders.WithLabelValues(activity, string(o.Order.Side)).Inc()
		}
	}
	result := "completed"
	if r.Err != nil {
		result = "abandoned"
	}
	m.iterations.WithLabelValues(r.Activity, result).Inc()
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		m.duration.WithLabelValues(r.Activity).Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	}
}

func (m *Metrics) SchedulerSkip(activity string) {
	if m != nil {
		m.skips.WithLabelValues(activity).Inc()
	}
}

func (m *Metrics) TriggerDropped() {
	if m != nil {
		m.triggerDrops.Inc()
	}
}

func (m *Metrics) SetCursor(id int64) {
	if m != nil {
		m.cursor.Set(float64(id))
	}
}

// BreakerState flags a breaker as open (true) or closed.
func (m *Metrics) BreakerState(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerOpen.WithLabelValues(name).Set(v)
}
