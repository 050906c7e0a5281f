// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Scanner metrics
	QuoteRoundsTotal  prometheus.Counter
	QuoteSetsProduced prometheus.Counter
	QuoteLegErrors    *prometheus.CounterVec
	QuoteLatency      prometheus.Histogram

	// Evaluator metrics
	OpportunitiesFound    prometheus.Counter
	OpportunitiesRejected *prometheus.CounterVec
	NetProfitLamports     prometheus.Histogram

	// Submission metrics
	BundlesSubmitted   prometheus.Counter
	BundlesRejected    prometheus.Counter
	DuplicateRejects   prometheus.Counter
	QueueDepth         prometheus.Gauge
	InFlightExecutions prometheus.Gauge

	// Tracker metrics
	ExecutionsTerminal *prometheus.CounterVec
	Rebuilds           prometheus.Counter
	ConfirmationTime   prometheus.Histogram

	// Chain state
	BlockHeight   prometheus.Gauge
	BlockhashSlot prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_arb"
	}

	return &Metrics{
		QuoteRoundsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "quote_rounds_total",
			Help:      "Total number of completed quote rounds",
		}),
		QuoteSetsProduced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "quote_sets_produced_total",
			Help:      "Total number of completed two-leg quote sets",
		}),
		QuoteLegErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "quote_leg_errors_total",
			Help:      "Total number of failed quote legs by side",
		}, []string{"leg"}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "quote_latency_seconds",
			Help:      "Latency of single quote requests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),

		OpportunitiesFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "opportunities_found_total",
			Help:      "Total number of opportunities passing all thresholds",
		}),
		OpportunitiesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "opportunities_rejected_total",
			Help:      "Total number of rejected quote sets by reason",
		}, []string{"reason"}),
		NetProfitLamports: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "net_profit_lamports",
			Help:      "Net profit of accepted opportunities in lamports",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		}),

		BundlesSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundles_submitted_total",
			Help:      "Total number of bundles accepted by the relay",
		}),
		BundlesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundles_rejected_total",
			Help:      "Total number of bundles rejected by the relay",
		}),
		DuplicateRejects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "duplicate_rejects_total",
			Help:      "Total number of submissions rejected by the single-flight registry",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "queue_depth",
			Help:      "Opportunities waiting for a free submission slot",
		}),
		InFlightExecutions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "in_flight_executions",
			Help:      "Executions submitted and not yet terminal",
		}),

		ExecutionsTerminal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "executions_terminal_total",
			Help:      "Total number of executions reaching a terminal status",
		}, []string{"status"}),
		Rebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "rebuilds_total",
			Help:      "Total number of expiry rebuilds",
		}),
		ConfirmationTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "confirmation_seconds",
			Help:      "Time from submission to landing",
			Buckets:   prometheus.ExponentialBuckets(0.4, 2, 8),
		}),

		BlockHeight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "block_height",
			Help:      "Most recently observed block height",
		}),
		BlockhashSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "blockhash_slot",
			Help:      "Slot of the cached blockhash",
		}),
	}
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
