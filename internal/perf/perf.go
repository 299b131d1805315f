// Package perf tracks per-provider query performance from streaming feedback.
//
// Each provider gets one Tracker. A tracker holds two decaying accumulators
// over (success, latency) events:
//
//   - fast: reacts to sudden degradation within seconds, so a provider that
//     starts failing is demoted before it burns many client queries.
//   - slow: remembers roughly the last 1000 seconds of history, so a short
//     transient (a handful of failures) cannot erase a long good record.
//
// ExpectedPerformance blends the two, favoring the fast signal. Decay is
// driven by the caller: invoke Decay on every live tracker at ~1 Hz. The
// retention constants are calibrated to that cadence; skipping ticks slows
// forgetting, ticking faster speeds it. The tracker never reads a clock.
package perf

import (
	"math"

	"github.com/dispatch-network/dispatch/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// FastDecay is the per-tick decay rate of the fast accumulator. At 1 Hz
	// the fast window holds roughly the last 20 seconds of feedback.
	FastDecay = 0.05

	// SlowDecay is the per-tick decay rate of the slow accumulator (a memory
	// of roughly the last 1000 seconds at 1 Hz).
	SlowDecay = 0.001

	// FastBias is the weight of the fast accumulator when blending the two
	// into an expected performance snapshot.
	FastBias = 0.8

	// SuccessRateCeiling caps the blended success rate. No single provider is
	// ever treated as certain to respond, which keeps multi-provider racing
	// worthwhile.
	SuccessRateCeiling = 0.99
)

// ─── Types ──────────────────────────────────────────────────────────────────

// ExpectedPerformance is a read-only snapshot of a tracker.
type ExpectedPerformance struct {
	SuccessRate domain.Normalized
	LatencyMS   uint16
}

// accumulator is one decayed view of the feedback stream.
type accumulator struct {
	totalLatencyMS float64 // sum of observed latencies, decayed
	successCount   float64 // decayed
	failureCount   float64 // decayed
}

// Tracker estimates a provider's success rate and typical latency.
//
// Not internally synchronized: Feedback and Decay mutate state and must be
// serialized by the owner (one writer, or a lock per tracker).
type Tracker struct {
	fast accumulator
	slow accumulator
}

// NewTracker returns an empty tracker (no observations).
func NewTracker() *Tracker { return &Tracker{} }

// ─── Operations ─────────────────────────────────────────────────────────────

// Feedback records one query outcome in both accumulators.
func (t *Tracker) Feedback(success bool, latencyMS uint16) {
	t.fast.feedback(success, latencyMS)
	t.slow.feedback(success, latencyMS)
}

// Decay applies one tick of exponential forgetting. Call at ~1 Hz.
func (t *Tracker) Decay() {
	t.fast.decay(FastDecay)
	t.slow.decay(SlowDecay)
}

// ExpectedPerformance blends the fast and slow accumulators into a snapshot.
//
// Per accumulator the success rate is Laplace-smoothed, (s+1)/(s+1+f), which
// lifts providers with little feedback out of 0 and makes division by zero
// impossible. The blended rate is capped at SuccessRateCeiling.
func (t *Tracker) ExpectedPerformance() ExpectedPerformance {
	fastRate, fastLatency := t.fast.estimate()
	slowRate, slowLatency := t.slow.estimate()

	rate := math.Min(SuccessRateCeiling, FastBias*fastRate+(1-FastBias)*slowRate)
	latency := math.Round(FastBias*fastLatency + (1-FastBias)*slowLatency)
	if latency > math.MaxUint16 {
		latency = math.MaxUint16
	}

	return ExpectedPerformance{
		SuccessRate: domain.MustNormalized(rate),
		LatencyMS:   uint16(latency),
	}
}

// ─── Accumulator internals ──────────────────────────────────────────────────

func (a *accumulator) feedback(success bool, latencyMS uint16) {
	a.totalLatencyMS += float64(latencyMS)
	if success {
		a.successCount++
	} else {
		a.failureCount++
	}
}

func (a *accumulator) decay(rate float64) {
	retain := 1 - rate
	a.totalLatencyMS *= retain
	a.successCount *= retain
	a.failureCount *= retain
}

// estimate returns the accumulator's smoothed success rate and mean latency.
func (a *accumulator) estimate() (successRate, latencyMS float64) {
	s := a.successCount + 1
	successRate = s / (s + a.failureCount)
	latencyMS = a.totalLatencyMS / math.Max(1, a.successCount+a.failureCount)
	return successRate, latencyMS
}
