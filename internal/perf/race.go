package perf

import (
	"sort"

	"github.com/dispatch-network/dispatch/internal/domain"
)

// ─── Race-probability kernel ────────────────────────────────────────────────
// Models the dispatch policy "query all selected providers in parallel, use
// the first successful response". A provider's response is used iff every
// faster provider fails and it succeeds.

// RaceProbabilities returns, for each snapshot, the probability that its
// provider produces the first successful response when all are queried in
// parallel. Output order matches input order; the probabilities sum to ≤ 1
// (equal to 1 only when some success rate is 1).
//
// For example, success rates [0.99, 0.5, 0.8] with latencies [50, 20, 200]
// yield probabilities ≈ [0.495, 0.5, 0.004]: the 20 ms provider wins whenever
// it succeeds, the 50 ms provider wins on the remaining 50%, and the 200 ms
// provider is left with the crumbs.
func RaceProbabilities(perfs []ExpectedPerformance) []float64 {
	// Sort indices by ascending latency, keeping the permutation explicit so
	// the result can be unsorted back into the caller's order.
	order := make([]int, len(perfs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return perfs[order[a]].LatencyMS < perfs[order[b]].LatencyMS
	})

	ps := make([]float64, len(perfs))
	allFasterFail := 1.0
	for _, idx := range order {
		s := perfs[idx].SuccessRate.Float64()
		ps[idx] = allFasterFail * s
		allFasterFail *= 1 - s
	}
	return ps
}

// RaceSuccessRate is the probability that any response is used: Σ p_i,
// clamped into [0, 1] against accumulated rounding.
func RaceSuccessRate(ps []float64) domain.Normalized {
	sum := 0.0
	for _, p := range ps {
		sum += p
	}
	n, err := domain.ClampNormalized(sum, 0, 1)
	if err != nil {
		return domain.NormalizedOne
	}
	return n
}

// RaceLatencyMS is the expected latency of the used response, computed
// harmonically as (Σ p_i / l_i)⁻¹. The reciprocal form keeps the expectation
// from collapsing toward 0 when the probabilities are small: for latency,
// lower is better, so averaging happens in rate space.
//
// A zero-latency provider with nonzero probability drives the expectation to
// 0; if no provider has a usable response (all p_i = 0) the result is +Inf.
// Callers clamp when narrowing to a millisecond width.
func RaceLatencyMS(perfs []ExpectedPerformance, ps []float64) float64 {
	sum := 0.0
	for i, p := range ps {
		if p <= 0 {
			continue
		}
		sum += p / float64(perfs[i].LatencyMS)
	}
	return 1 / sum
}
