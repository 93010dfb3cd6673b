package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/agent"
	"github.com/veritas-audit/veritas/internal/model"
	"github.com/veritas-audit/veritas/internal/pipeline"
)

// searchThresholdFloor is a broad recall floor used to fetch candidates
// for the LLM and for Router.modeFor to reason over; the real EXACT_MATCH
// / CONTEXTUAL / NOVEL_CLAIM thresholds are applied in router.go against
// the top candidate's similarity.
const searchThresholdFloor = 0.5

// Embedder is the narrow embedding dependency search_existing_claims
// needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClaimStore is the narrow Claim Store dependency the Router's tools and
// decision logging need. *store.Store satisfies this structurally.
type ClaimStore interface {
	SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.SearchCandidate, error)
	ClaimCardByID(ctx context.Context, id string) (*model.ClaimCard, error)
	InsertRouterDecision(ctx context.Context, d *model.RouterDecision) error
}

// Service implements the three tools a router agent can call:
// search_existing_claims, get_claim_details, and generate_new_claim
// (original_source/.../router_service.py).
type Service struct {
	Store        ClaimStore
	Embedder     Embedder
	Orchestrator *pipeline.Orchestrator
}

// NewService wires the store, embedder, and pipeline orchestrator
// generate_new_claim reserves a run against.
func NewService(store ClaimStore, embedder Embedder, orchestrator *pipeline.Orchestrator) *Service {
	return &Service{Store: store, Embedder: embedder, Orchestrator: orchestrator}
}

// SearchExistingClaims embeds query live (never a stale card embedding,
// per the embedding-freshness decision in the grounding ledger) and
// returns candidates ordered by descending similarity.
func (s *Service) SearchExistingClaims(ctx context.Context, query string, limit int) ([]model.SearchCandidate, error) {
	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("router: embed query: %w", err)
	}
	return s.Store.SearchByEmbedding(ctx, vec, searchThresholdFloor, limit)
}

// GetClaimDetails fetches one claim card in full, for CONTEXTUAL/
// EXACT_MATCH synthesis.
func (s *Service) GetClaimDetails(ctx context.Context, claimCardID string) (*model.ClaimCard, error) {
	return s.Store.ClaimCardByID(ctx, claimCardID)
}

// GenerateNewClaim reserves a fresh progress-bus session id and starts
// the pipeline for claimText in the background, returning the session id
// as a token the caller can subscribe to for progress — a real reservation,
// not the stub the original implementation returned (see grounding ledger,
// "Router generate_new_claim").
func (s *Service) GenerateNewClaim(ctx context.Context, claimText string) (string, error) {
	if s.Orchestrator == nil {
		return "", fmt.Errorf("router: no pipeline orchestrator configured")
	}
	sessionID := uuid.New().String()
	seed := agent.Inputs{"question": claimText}
	go func() {
		_, _ = s.Orchestrator.Run(context.Background(), sessionID, seed)
	}()
	return sessionID, nil
}
