// Package observability exposes the gateway's Prometheus metrics.
//
// Metrics cover the dispatch decision path end to end: feedback ingestion,
// decay cadence, selection rounds, and the shape of what selection returns.
// Everything is registered via promauto on the default registry; the API
// server serves it at /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Feedback Metrics ───────────────────────────────────────────────────────

// FeedbackEvents counts feedback events by outcome ("success" / "failure").
var FeedbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Subsystem: "feedback",
	Name:      "events_total",
	Help:      "Total feedback events recorded, by outcome.",
}, []string{"outcome"})

// FeedbackLatency tracks reported query latency.
var FeedbackLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Subsystem: "feedback",
	Name:      "latency_ms",
	Help:      "Reported provider response latency in milliseconds.",
	Buckets:   []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
})

// ─── Decay Metrics ──────────────────────────────────────────────────────────

// DecayTicks counts decay passes over the tracker registry.
var DecayTicks = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Subsystem: "perf",
	Name:      "decay_ticks_total",
	Help:      "Total decay passes applied to the performance trackers.",
})

// TrackedProviders tracks the number of providers with live trackers.
var TrackedProviders = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "dispatch",
	Subsystem: "perf",
	Name:      "tracked_providers",
	Help:      "Number of providers currently tracked.",
})

// ─── Selection Metrics ──────────────────────────────────────────────────────

// SelectionRounds counts selection rounds served.
var SelectionRounds = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Subsystem: "selection",
	Name:      "rounds_total",
	Help:      "Total selection rounds executed.",
})

// SelectionSize tracks how many candidates each round selected.
var SelectionSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Subsystem: "selection",
	Name:      "selected_candidates",
	Help:      "Number of candidates returned per selection round.",
	Buckets:   []float64{0, 1, 2, 3, 4, 5},
})

// SelectionDuration tracks selection wall time.
var SelectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "dispatch",
	Subsystem: "selection",
	Name:      "duration_seconds",
	Help:      "Wall time of one selection round.",
	Buckets:   prometheus.DefBuckets,
})

// SelectionEmpty counts rounds that selected nothing.
var SelectionEmpty = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Subsystem: "selection",
	Name:      "empty_rounds_total",
	Help:      "Selection rounds in which no candidate had positive marginal score.",
})
