// Package gateway owns the per-provider performance trackers and turns client
// queries into dispatch decisions.
//
// The registry is the single writer over every tracker: Feedback and the
// decay loop serialize through its mutex, which is the external
// synchronization the trackers require. Selection reads a snapshot of tracked
// performance, attaches it to the caller-supplied provider attributes, and
// runs the greedy selector.
//
// Decay cadence is owned here, not by the trackers: RunDecay ticks every
// tracker at the configured interval (1s in production; the decay rates are
// calibrated to that) until its context is canceled.
package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dispatch-network/dispatch/internal/domain"
	"github.com/dispatch-network/dispatch/internal/infra/observability"
	"github.com/dispatch-network/dispatch/internal/infra/sqlite"
	"github.com/dispatch-network/dispatch/internal/perf"
	"github.com/dispatch-network/dispatch/internal/provider"
	"github.com/dispatch-network/dispatch/internal/selection"
)

// DefaultDecayInterval is the cadence the tracker decay rates are calibrated
// to.
const DefaultDecayInterval = time.Second

// ─── Registry ───────────────────────────────────────────────────────────────

// Registry tracks performance per provider and serves selection rounds.
// Thread-safe; all tracker mutation funnels through its lock.
type Registry struct {
	mu       sync.Mutex
	trackers map[uuid.UUID]*perf.Tracker
	log      zerolog.Logger
	store    *sqlite.DB // nil disables the audit trail
}

// NewRegistry creates an empty registry. store may be nil to run without the
// audit trail.
func NewRegistry(log zerolog.Logger, store *sqlite.DB) *Registry {
	r := &Registry{
		trackers: make(map[uuid.UUID]*perf.Tracker),
		log:      log.With().Str("component", "gateway").Logger(),
		store:    store,
	}
	return r
}

// Feedback records one query outcome against a provider, creating its tracker
// on first sight.
func (r *Registry) Feedback(providerID uuid.UUID, success bool, latencyMS uint16) {
	r.mu.Lock()
	t, ok := r.trackers[providerID]
	if !ok {
		t = perf.NewTracker()
		r.trackers[providerID] = t
		observability.TrackedProviders.Set(float64(len(r.trackers)))
	}
	t.Feedback(success, latencyMS)
	r.mu.Unlock()

	outcome := "failure"
	if success {
		outcome = "success"
	}
	observability.FeedbackEvents.WithLabelValues(outcome).Inc()
	observability.FeedbackLatency.Observe(float64(latencyMS))

	if r.store != nil {
		if err := r.store.RecordFeedback(providerID.String(), success, latencyMS); err != nil {
			r.log.Warn().Err(err).Str("provider", providerID.String()).Msg("audit feedback write failed")
		}
	}
}

// ExpectedPerformance returns the tracked snapshot for a provider, or
// (zero, false) if the provider has never produced feedback.
func (r *Registry) ExpectedPerformance(providerID uuid.UUID) (perf.ExpectedPerformance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[providerID]
	if !ok {
		return perf.ExpectedPerformance{}, false
	}
	return t.ExpectedPerformance(), true
}

// Snapshot returns the expected performance of every tracked provider.
func (r *Registry) Snapshot() map[uuid.UUID]perf.ExpectedPerformance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]perf.ExpectedPerformance, len(r.trackers))
	for id, t := range r.trackers {
		out[id] = t.ExpectedPerformance()
	}
	return out
}

// Forget drops a provider's tracker.
func (r *Registry) Forget(providerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, providerID)
	observability.TrackedProviders.Set(float64(len(r.trackers)))
}

// DecayAll applies one decay tick to every tracker.
func (r *Registry) DecayAll() {
	r.mu.Lock()
	for _, t := range r.trackers {
		t.Decay()
	}
	r.mu.Unlock()
	observability.DecayTicks.Inc()
}

// RunDecay ticks DecayAll at interval until ctx is canceled. Run it in its
// own goroutine.
func (r *Registry) RunDecay(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", interval).Msg("decay loop started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("decay loop stopped")
			return
		case <-ticker.C:
			r.DecayAll()
		}
	}
}

// ─── Selection ──────────────────────────────────────────────────────────────

// ProviderSpec is the caller-known state of one candidate: everything except
// the tracked performance, which the registry attaches.
type ProviderSpec struct {
	Provider       uuid.UUID
	Deployment     string
	Fee            domain.Normalized
	SecondsBehind  uint32
	SlashableStake uint64
	VersionsBehind uint8
	ZeroAllocation bool
}

// Decision is the outcome of one selection round.
type Decision struct {
	RoundID  uuid.UUID
	Selected []*provider.Candidate
	Duration time.Duration
}

// SelectProviders assembles candidates from specs plus tracked performance
// and returns up to limit of them. Providers without feedback history get an
// empty tracker's optimistic snapshot, so newcomers are eligible immediately.
func (r *Registry) SelectProviders(specs []ProviderSpec, limit int) Decision {
	start := time.Now()

	candidates := make([]*provider.Candidate, len(specs))
	r.mu.Lock()
	for i, spec := range specs {
		var expected perf.ExpectedPerformance
		if t, ok := r.trackers[spec.Provider]; ok {
			expected = t.ExpectedPerformance()
		} else {
			expected = perf.NewTracker().ExpectedPerformance()
		}
		candidates[i] = &provider.Candidate{
			Provider:       spec.Provider,
			Deployment:     spec.Deployment,
			FeeFraction:    spec.Fee,
			SecondsBehind:  spec.SecondsBehind,
			SlashableStake: spec.SlashableStake,
			VersionsBehind: spec.VersionsBehind,
			ZeroAllocation: spec.ZeroAllocation,
			Perf:           expected,
		}
	}
	r.mu.Unlock()

	selected := selection.Select(candidates, limit)
	decision := Decision{
		RoundID:  uuid.New(),
		Selected: selected,
		Duration: time.Since(start),
	}

	observability.SelectionRounds.Inc()
	observability.SelectionSize.Observe(float64(len(selected)))
	observability.SelectionDuration.Observe(decision.Duration.Seconds())
	if len(selected) == 0 {
		observability.SelectionEmpty.Inc()
	}

	r.log.Debug().
		Str("round", decision.RoundID.String()).
		Int("candidates", len(specs)).
		Int("selected", len(selected)).
		Dur("took", decision.Duration).
		Msg("selection round")

	if r.store != nil {
		names := make([]string, len(selected))
		for i, c := range selected {
			names[i] = c.Provider.String()
		}
		err := r.store.RecordSelection(
			decision.RoundID.String(), len(specs), len(selected),
			strings.Join(names, ","), decision.Duration,
		)
		if err != nil {
			r.log.Warn().Err(err).Msg("audit selection write failed")
		}
	}

	return decision
}
