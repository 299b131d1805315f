// Package provider defines the dispatch gateway's candidate record and its
// scoring policy.
//
// A candidate is one provider/deployment pair eligible for a client query.
// Its utility is the product of six sub-scores (success rate, latency,
// staleness, slashable stake, version lag, and the zero-allocation flag), each
// mapped into [0, 1] by a fixed curve. The weighted-product form is deliberate:
// any single sub-score near zero near-vetoes selection, and improving any one
// attribute while holding the rest constant never lowers the outcome, so
// "all else equal, less stale is always preferred" holds by construction.
//
// ScoreMany scores a subset as if all members were queried in parallel with
// the first successful response used, combining the race-probability kernel
// with pessimistic aggregation of the remaining attributes.
package provider

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/dispatch-network/dispatch/internal/domain"
	"github.com/dispatch-network/dispatch/internal/perf"
)

// ─── Candidate ──────────────────────────────────────────────────────────────

// Candidate is one provider/deployment pair under consideration for a query.
// Immutable during a selection round.
type Candidate struct {
	// Provider and Deployment together identify the candidate.
	Provider   uuid.UUID
	Deployment string

	// FeeFraction is the fraction of the query budget this candidate would
	// consume.
	FeeFraction domain.Normalized

	// SecondsBehind is how far the candidate's data lags the source of truth.
	SecondsBehind uint32

	// SlashableStake is the economic security backing the candidate's
	// responses. Larger is better.
	SlashableStake uint64

	// VersionsBehind counts deployment versions between the candidate and the
	// latest.
	VersionsBehind uint8

	// ZeroAllocation marks providers that asked to be deprioritized.
	ZeroAllocation bool

	// Perf is the tracked performance snapshot for this provider.
	Perf perf.ExpectedPerformance
}

// ID hashes the distinguishing attributes to a 64-bit identity, used by the
// selector to deduplicate within one round.
func (c *Candidate) ID() uint64 {
	h := sha256.New()
	h.Write(c.Provider[:])
	h.Write([]byte(c.Deployment))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Fee returns the fraction of the budget this candidate would consume.
func (c *Candidate) Fee() domain.Normalized { return c.FeeFraction }

// Score is the candidate's individual utility: the product of the six
// sub-scores over its attributes.
func (c *Candidate) Score() domain.Normalized {
	return domain.ProductNormalized(
		scoreSuccessRate(c.Perf.SuccessRate),
		scoreLatency(c.Perf.LatencyMS),
		scoreSecondsBehind(c.SecondsBehind),
		scoreSlashableStake(c.SlashableStake),
		scoreVersionsBehind(c.VersionsBehind),
		scoreZeroAllocation(c.ZeroAllocation),
	)
}

// ScoreMany is the utility of subset if all members were queried in parallel.
//
// The subset's fees must fit the budget: if Σ fee exceeds 1 the subset scores
// 0 and the selector rejects the extension. Success rate and latency combine
// through the race kernel; the remaining attributes aggregate pessimistically,
// since a racing client inherits the worst member on attributes where
// heterogeneity does not help it. A single-element subset scores exactly its
// member's Score.
func (c *Candidate) ScoreMany(subset []*Candidate) domain.Normalized {
	if len(subset) == 0 {
		return domain.NormalizedZero
	}
	if len(subset) == 1 {
		// A lone candidate races nobody; the race latency aggregate would
		// report latency/success rate instead of its latency.
		return subset[0].Score()
	}

	totalFee := 0.0
	for _, s := range subset {
		totalFee += s.FeeFraction.Float64()
	}
	if totalFee > 1 {
		return domain.NormalizedZero
	}

	perfs := make([]perf.ExpectedPerformance, len(subset))
	for i, s := range subset {
		perfs[i] = s.Perf
	}
	ps := perf.RaceProbabilities(perfs)

	successRate := perf.RaceSuccessRate(ps)
	latencyMS := clipLatencyMS(perf.RaceLatencyMS(perfs, ps))

	secondsBehind := subset[0].SecondsBehind
	slashableStake := subset[0].SlashableStake
	versionsBehind := subset[0].VersionsBehind
	zeroAllocation := subset[0].ZeroAllocation
	for _, s := range subset[1:] {
		secondsBehind = max(secondsBehind, s.SecondsBehind)
		slashableStake = min(slashableStake, s.SlashableStake)
		versionsBehind = max(versionsBehind, s.VersionsBehind)
		zeroAllocation = zeroAllocation && s.ZeroAllocation
	}

	return domain.ProductNormalized(
		scoreSuccessRate(successRate),
		scoreLatency(latencyMS),
		scoreSecondsBehind(secondsBehind),
		scoreSlashableStake(slashableStake),
		scoreVersionsBehind(versionsBehind),
		scoreZeroAllocation(zeroAllocation),
	)
}

// clipLatencyMS narrows an expected latency to milliseconds, saturating at
// the millisecond width's maximum.
func clipLatencyMS(latency float64) uint16 {
	if latency >= math.MaxUint16 || math.IsInf(latency, 1) {
		return math.MaxUint16
	}
	if latency < 0 {
		return 0
	}
	return uint16(latency)
}

// ─── Sub-scores ─────────────────────────────────────────────────────────────
// The latency and staleness curves are logistic; the others are powers, an
// exponential saturation, and a constant discount. Each maps its attribute
// into [0, 1] and is monotone in the attribute.

// scoreSuccessRate sharpens the success rate with a 7th power, floored so a
// provider with zero observed successes retains a nonzero score.
func scoreSuccessRate(successRate domain.Normalized) domain.Normalized {
	n, _ := domain.ClampNormalized(math.Pow(successRate.Float64(), 7), 1e-8, 1)
	return n
}

// scoreLatency compares the candidate's latency against a reference sigmoid.
// High latency becomes bad success rate via timeouts, so the score has a
// floor rather than running to zero.
func scoreLatency(latencyMS uint16) domain.Normalized {
	sigmoid := func(x float64) float64 { return 1 + math.Exp((x-400)/300) }
	n, _ := domain.ClampNormalized(sigmoid(0)/sigmoid(float64(latencyMS)), 1e-3, 1)
	return n
}

// scoreSecondsBehind is a logistic drop from ~1 for fresh data toward ~0
// beyond a few minutes behind.
func scoreSecondsBehind(secondsBehind uint32) domain.Normalized {
	const (
		b  = 1e-16
		l  = 1.532
		k  = 0.021
		x0 = 30
	)
	u := b + l/(1+math.Exp(k*(float64(secondsBehind)-x0)))
	return domain.MustNormalized(u)
}

// scoreSlashableStake saturates toward 1 as the stake at risk grows; roughly
// 0.8 at a stake of 100,000.
func scoreSlashableStake(slashableStake uint64) domain.Normalized {
	const a = 1.6e-5
	return domain.MustNormalized(1 - math.Exp(-a*float64(slashableStake)))
}

// scoreVersionsBehind quarters the score per version of lag.
func scoreVersionsBehind(versionsBehind uint8) domain.Normalized {
	return domain.MustNormalized(math.Pow(0.25, float64(versionsBehind)))
}

// scoreZeroAllocation discounts providers that requested deprioritization.
func scoreZeroAllocation(zeroAllocation bool) domain.Normalized {
	if zeroAllocation {
		return domain.MustNormalized(0.8)
	}
	return domain.NormalizedOne
}
