package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dispatch-network/dispatch/internal/gateway"
)

func newTestServer(t *testing.T) (*Server, *gateway.Registry) {
	t.Helper()
	registry := gateway.NewRegistry(zerolog.Nop(), nil)
	return NewServer(registry, nil, 3), registry
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ─── Health ─────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// ─── Feedback ───────────────────────────────────────────────────────────────

func TestFeedback_Recorded(t *testing.T) {
	server, registry := newTestServer(t)
	id := uuid.New()

	rec := postJSON(t, server.Handler(), "/v1/feedback", feedbackRequest{
		Provider:  id.String(),
		Success:   true,
		LatencyMS: 120,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body)
	}

	p, ok := registry.ExpectedPerformance(id)
	if !ok {
		t.Fatal("feedback did not reach the registry")
	}
	if p.LatencyMS != 120 {
		t.Errorf("latency = %d, want 120", p.LatencyMS)
	}
}

func TestFeedback_InvalidProvider(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/feedback", feedbackRequest{
		Provider: "not-a-uuid",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ─── Select ─────────────────────────────────────────────────────────────────

func TestSelect_ReturnsSelection(t *testing.T) {
	server, _ := newTestServer(t)

	rec := postJSON(t, server.Handler(), "/v1/select", selectRequest{
		Candidates: []candidateRequest{
			{Provider: uuid.New().String(), Deployment: "d", SlashableStake: 1_000_000},
			{Provider: uuid.New().String(), Deployment: "d", SlashableStake: 1_000_000},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body)
	}

	var resp selectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RoundID == "" {
		t.Error("response missing round ID")
	}
	if len(resp.Selected) == 0 {
		t.Error("healthy candidates should produce a non-empty selection")
	}
	for _, s := range resp.Selected {
		if s.Score <= 0 {
			t.Errorf("selected candidate %s has score %g", s.Provider, s.Score)
		}
	}
}

func TestSelect_NoCandidates(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/select", selectRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSelect_RejectsFeeOutOfRange(t *testing.T) {
	server, _ := newTestServer(t)
	rec := postJSON(t, server.Handler(), "/v1/select", selectRequest{
		Candidates: []candidateRequest{
			{Provider: uuid.New().String(), Fee: 1.5},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// ─── Providers ──────────────────────────────────────────────────────────────

func TestProviders_ListsTracked(t *testing.T) {
	server, registry := newTestServer(t)
	registry.Feedback(uuid.New(), true, 30)
	registry.Feedback(uuid.New(), false, 60)

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Providers []providerSnapshot `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Providers) != 2 {
		t.Errorf("listed %d providers, want 2", len(resp.Providers))
	}
}

// ─── Selections audit ───────────────────────────────────────────────────────

func TestSelections_UnavailableWithoutStore(t *testing.T) {
	server, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/selections", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the audit trail is disabled", rec.Code)
	}
}
