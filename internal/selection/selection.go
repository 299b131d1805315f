// Package selection implements greedy multi-criteria candidate selection.
//
// Given a slice of candidates, each exposing an identity, a fee, an
// individual utility score, and a combined score over a subset, Select picks
// up to limit of them by repeatedly adding the candidate with the best
// fee-adjusted marginal gain. The combined score models querying the whole
// subset in parallel, so a candidate is only added while its inclusion
// actually improves the expected outcome per unit of fee.
//
// Select is a pure synchronous function: no I/O, no goroutines, no locks. It
// returns elements of the input slice; the caller keeps the slice alive while
// using the result.
package selection

import "github.com/dispatch-network/dispatch/internal/domain"

// ─── Candidate contract ─────────────────────────────────────────────────────

// Candidate is the minimal capability the selector needs. The type parameter
// lets ScoreMany receive the concrete candidate type without assertions.
//
// Contract:
//   - ID is stable within one Select call and identifies duplicates.
//   - Fee is the fraction of the caller's budget the candidate would consume.
//   - ScoreMany of a single-element subset equals that element's Score (up to
//     numerical noise), and is symmetric in subset order. The selector never
//     invokes it on an empty subset.
type Candidate[C any] interface {
	ID() uint64
	Fee() domain.Normalized
	Score() domain.Normalized
	ScoreMany(subset []C) domain.Normalized
}

// minFeeDivisor floors the fee in the marginal-gain key. It keeps zero-fee
// candidates from dividing by zero while still letting them outrank
// equally-scoring paid candidates.
const minFeeDivisor = 0.01

// ─── Selection ──────────────────────────────────────────────────────────────

// Select returns up to limit of the provided candidates, greedily maximizing
// combined score per unit of fee. At least one candidate is returned as long
// as some candidate has an individual score greater than 0.
//
// An empty result means no candidate had a strictly positive marginal score
// against the greedy path. That is a legitimate outcome, not an error.
//
// limit must be ≥ 1.
func Select[C Candidate[C]](candidates []C, limit int) []C {
	if limit < 1 {
		panic("selection: limit must be >= 1")
	}

	selected := make([]C, 0, limit)
	for len(selected) < limit {
		var current float64
		switch len(selected) {
		case 0:
			current = 0
		case 1:
			current = selected[0].Score().Float64()
		default:
			current = selected[0].ScoreMany(selected).Float64()
		}

		best := -1
		var bestKey float64
		var bestMarginal float64
		var bestID uint64
		for i, candidate := range candidates {
			if contains(selected, candidate.ID()) {
				continue
			}
			marginal := marginalScore(current, selected, candidate)
			key := marginal / max(minFeeDivisor, candidate.Fee().Float64())
			// Ties break toward the lower ID so the outcome does not depend
			// on input order.
			id := candidate.ID()
			if best >= 0 && (key < bestKey || (key == bestKey && id >= bestID)) {
				continue
			}
			best, bestKey, bestMarginal, bestID = i, key, marginal, id
		}
		if best < 0 || bestMarginal <= 0 {
			break
		}
		selected = append(selected, candidates[best])
	}
	return selected
}

// marginalScore is the combined-score gain from extending selected with
// candidate.
func marginalScore[C Candidate[C]](current float64, selected []C, candidate C) float64 {
	var potential float64
	if len(selected) == 0 {
		potential = candidate.Score().Float64()
	} else {
		subset := make([]C, len(selected), len(selected)+1)
		copy(subset, selected)
		subset = append(subset, candidate)
		potential = candidate.ScoreMany(subset).Float64()
	}
	return potential - current
}

func contains[C Candidate[C]](selected []C, id uint64) bool {
	for _, s := range selected {
		if s.ID() == id {
			return true
		}
	}
	return false
}
