package bot

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arbbot"

// Cycle results recorded by the cycles counter.
const (
	cycleQuoteFailed = "quote_failed"
	cycleNotViable   = "not_viable"
	cycleExecuted    = "executed"
	cycleDryRun      = "dry_run"
)

// Metrics holds the bot's prometheus collectors.
type Metrics struct {
	EventsReceived prometheus.Counter
	EventsDropped  prometheus.Counter
	Cycles         *prometheus.CounterVec
	QuoteFailures  *prometheus.CounterVec
	Trades         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_events_received_total",
			Help:      "Swap events received from monitored pairs.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_events_dropped_total",
			Help:      "Swap events dropped because a cycle was already executing.",
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed arbitrage cycles by result.",
		}, []string{"result"}),
		QuoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_failures_total",
			Help:      "Routes that could not be quoted, by direction.",
		}, []string{"direction"}),
		Trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Flash trades attempted, by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of an admitted arbitrage cycle.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	reg.MustRegister(
		m.EventsReceived,
		m.EventsDropped,
		m.Cycles,
		m.QuoteFailures,
		m.Trades,
		m.CycleDuration,
	)
	return m
}
