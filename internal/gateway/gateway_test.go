package gateway

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dispatch-network/dispatch/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(zerolog.Nop(), nil)
}

func testProviderID(n byte) uuid.UUID {
	var id uuid.UUID
	id[0] = n
	return id
}

// ─── Feedback and snapshots ─────────────────────────────────────────────────

func TestFeedback_CreatesTracker(t *testing.T) {
	r := newTestRegistry(t)
	id := testProviderID(1)

	if _, ok := r.ExpectedPerformance(id); ok {
		t.Fatal("provider should not be tracked before feedback")
	}

	r.Feedback(id, true, 80)
	p, ok := r.ExpectedPerformance(id)
	if !ok {
		t.Fatal("provider should be tracked after feedback")
	}
	if p.LatencyMS != 80 {
		t.Errorf("latency = %d, want 80", p.LatencyMS)
	}
}

func TestSnapshot_CoversAllProviders(t *testing.T) {
	r := newTestRegistry(t)
	for n := byte(1); n <= 5; n++ {
		r.Feedback(testProviderID(n), true, uint16(n)*10)
	}
	snapshot := r.Snapshot()
	if len(snapshot) != 5 {
		t.Errorf("snapshot has %d providers, want 5", len(snapshot))
	}
}

func TestForget_DropsTracker(t *testing.T) {
	r := newTestRegistry(t)
	id := testProviderID(1)
	r.Feedback(id, true, 10)
	r.Forget(id)
	if _, ok := r.ExpectedPerformance(id); ok {
		t.Error("forgotten provider still tracked")
	}
}

// ─── Decay ──────────────────────────────────────────────────────────────────

func TestDecayAll_ErodesHistory(t *testing.T) {
	r := newTestRegistry(t)
	id := testProviderID(1)
	for i := 0; i < 100; i++ {
		r.Feedback(id, false, 10)
	}
	before, _ := r.ExpectedPerformance(id)

	// Without fresh feedback, decay pulls the smoothed rate back up toward
	// the empty-tracker optimism.
	for i := 0; i < 200; i++ {
		r.DecayAll()
	}
	after, _ := r.ExpectedPerformance(id)
	if !before.SuccessRate.Less(after.SuccessRate) {
		t.Errorf("success rate should recover under decay: %v -> %v", before.SuccessRate, after.SuccessRate)
	}
}

// ─── Selection ──────────────────────────────────────────────────────────────

func TestSelectProviders_UsesTrackedPerformance(t *testing.T) {
	r := newTestRegistry(t)
	good := testProviderID(1)
	bad := testProviderID(2)

	for i := 0; i < 500; i++ {
		r.Feedback(good, true, 50)
		r.Feedback(bad, i%10 == 0, 50) // 10% success
	}

	specs := []ProviderSpec{
		{Provider: good, Deployment: "d", SlashableStake: 1_000_000},
		{Provider: bad, Deployment: "d", SlashableStake: 1_000_000},
	}
	decision := r.SelectProviders(specs, 1)
	if len(decision.Selected) != 1 {
		t.Fatalf("selected %d, want 1", len(decision.Selected))
	}
	if decision.Selected[0].Provider != good {
		t.Error("selection should prefer the reliable provider")
	}
	if decision.RoundID == (uuid.UUID{}) {
		t.Error("decision should carry a round ID")
	}
}

func TestSelectProviders_UnknownProvidersEligible(t *testing.T) {
	r := newTestRegistry(t)
	specs := []ProviderSpec{
		{Provider: testProviderID(9), Deployment: "d", SlashableStake: 500_000},
	}
	decision := r.SelectProviders(specs, 3)
	if len(decision.Selected) != 1 {
		t.Errorf("newcomer without history should be selectable, got %d", len(decision.Selected))
	}
}

func TestSelectProviders_RespectsFees(t *testing.T) {
	r := newTestRegistry(t)
	specs := make([]ProviderSpec, 4)
	for i := range specs {
		specs[i] = ProviderSpec{
			Provider:       testProviderID(byte(i + 1)),
			Deployment:     "d",
			Fee:            domain.MustNormalized(0.4),
			SlashableStake: 1_000_000,
		}
	}
	decision := r.SelectProviders(specs, 4)
	if len(decision.Selected) != 2 {
		t.Errorf("selected %d, want 2 (budget caps the subset)", len(decision.Selected))
	}
}
