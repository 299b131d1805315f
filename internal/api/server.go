// Package api provides the gateway's HTTP interface.
//
// Routes:
//
//	GET  /health               — liveness probe
//	GET  /metrics              — Prometheus metrics (when enabled)
//	POST /v1/select            — run one selection round over posted candidates
//	POST /v1/feedback          — record a provider query outcome
//	GET  /v1/providers         — tracked performance snapshots
//	GET  /v1/selections        — recent audit-trail rounds (when store enabled)
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dispatch-network/dispatch/internal/domain"
	"github.com/dispatch-network/dispatch/internal/gateway"
	"github.com/dispatch-network/dispatch/internal/infra/sqlite"
)

// Server is the dispatch HTTP API server.
type Server struct {
	registry       *gateway.Registry
	store          *sqlite.DB // nil when the audit trail is disabled
	limit          int
	metricsEnabled bool
}

// NewServer creates an API server over the registry. limit is the default
// selection size; store may be nil.
func NewServer(registry *gateway.Registry, store *sqlite.DB, limit int) *Server {
	return &Server{registry: registry, store: store, limit: limit}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/select", s.handleSelect)
		r.Post("/feedback", s.handleFeedback)
		r.Get("/providers", s.handleProviders)
		r.Get("/selections", s.handleSelections)
	})

	return r
}

// ─── Selection ──────────────────────────────────────────────────────────────

type candidateRequest struct {
	Provider       string  `json:"provider"`
	Deployment     string  `json:"deployment"`
	Fee            float64 `json:"fee"`
	SecondsBehind  uint32  `json:"seconds_behind"`
	SlashableStake uint64  `json:"slashable_stake"`
	VersionsBehind uint8   `json:"versions_behind"`
	ZeroAllocation bool    `json:"zero_allocation"`
}

type selectRequest struct {
	Limit      int                `json:"limit,omitempty"`
	Candidates []candidateRequest `json:"candidates"`
}

type selectedCandidate struct {
	Provider    string  `json:"provider"`
	Deployment  string  `json:"deployment"`
	Score       float64 `json:"score"`
	SuccessRate float64 `json:"success_rate"`
	LatencyMS   uint16  `json:"latency_ms"`
}

type selectResponse struct {
	RoundID  string              `json:"round_id"`
	Selected []selectedCandidate `json:"selected"`
}

// handleSelect runs one selection round.
// POST /v1/select
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, domain.ErrNoCandidates.Error())
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.limit
	}

	specs := make([]gateway.ProviderSpec, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		id, err := uuid.Parse(c.Provider)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid provider id "+c.Provider)
			return
		}
		fee, err := domain.NewNormalized(c.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fee for "+c.Provider+" must be in [0, 1]")
			return
		}
		specs = append(specs, gateway.ProviderSpec{
			Provider:       id,
			Deployment:     c.Deployment,
			Fee:            fee,
			SecondsBehind:  c.SecondsBehind,
			SlashableStake: c.SlashableStake,
			VersionsBehind: c.VersionsBehind,
			ZeroAllocation: c.ZeroAllocation,
		})
	}

	decision := s.registry.SelectProviders(specs, limit)

	resp := selectResponse{
		RoundID:  decision.RoundID.String(),
		Selected: make([]selectedCandidate, len(decision.Selected)),
	}
	for i, c := range decision.Selected {
		resp.Selected[i] = selectedCandidate{
			Provider:    c.Provider.String(),
			Deployment:  c.Deployment,
			Score:       c.Score().Float64(),
			SuccessRate: c.Perf.SuccessRate.Float64(),
			LatencyMS:   c.Perf.LatencyMS,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Feedback ───────────────────────────────────────────────────────────────

type feedbackRequest struct {
	Provider  string `json:"provider"`
	Success   bool   `json:"success"`
	LatencyMS uint16 `json:"latency_ms"`
}

// handleFeedback records one query outcome.
// POST /v1/feedback
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id, err := uuid.Parse(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider id "+req.Provider)
		return
	}
	s.registry.Feedback(id, req.Success, req.LatencyMS)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// ─── Providers ──────────────────────────────────────────────────────────────

type providerSnapshot struct {
	Provider    string  `json:"provider"`
	SuccessRate float64 `json:"success_rate"`
	LatencyMS   uint16  `json:"latency_ms"`
}

// handleProviders lists tracked performance snapshots.
// GET /v1/providers
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	snapshot := s.registry.Snapshot()
	out := make([]providerSnapshot, 0, len(snapshot))
	for id, p := range snapshot {
		out = append(out, providerSnapshot{
			Provider:    id.String(),
			SuccessRate: p.SuccessRate.Float64(),
			LatencyMS:   p.LatencyMS,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// handleSelections returns recent audit-trail rounds.
// GET /v1/selections?limit=N
func (s *Server) handleSelections(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit trail disabled")
		return
	}
	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rounds, err := s.store.RecentSelections(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selections": rounds})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
