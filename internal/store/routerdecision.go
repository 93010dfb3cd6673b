package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/model"
)

// InsertRouterDecision appends one routing decision to the log (spec
// §4.I: "every decision is persisted... regardless of mode"). Insertions
// are serialized per request but unordered across requests (§5), so this
// takes no lock beyond the database's own write serialization.
func (s *Store) InsertRouterDecision(ctx context.Context, d *model.RouterDecision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	historyJSON, err := json.Marshal(d.ConversationContext)
	if err != nil {
		return fmt.Errorf("store: marshal conversation_context: %w", err)
	}
	refsJSON, err := json.Marshal(d.ClaimCardsReferenced)
	if err != nil {
		return fmt.Errorf("store: marshal claim_cards_referenced: %w", err)
	}
	candidatesJSON, err := json.Marshal(d.SearchCandidates)
	if err != nil {
		return fmt.Errorf("store: marshal search_candidates: %w", err)
	}
	if d.SearchCandidates == nil {
		candidatesJSON = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO router_decisions (
			id, created_at, question_text, reformulated_question,
			conversation_context, mode_selected, claim_cards_referenced,
			search_candidates, reasoning, response_time_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CreatedAt, d.QuestionText, d.ReformulatedQuestion, string(historyJSON),
		string(d.ModeSelected), string(refsJSON), string(candidatesJSON), d.Reasoning, d.ResponseTimeMS,
	)
	if err != nil {
		return fmt.Errorf("store: insert_router_decision: %w", err)
	}
	return nil
}

// RouterDecisionByID fetches a single decision, used by the admin surface
// and by tests asserting P9.
func (s *Store) RouterDecisionByID(ctx context.Context, id string) (*model.RouterDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, question_text, reformulated_question,
			conversation_context, mode_selected, claim_cards_referenced,
			search_candidates, reasoning, response_time_ms
		FROM router_decisions WHERE id = ?`, id)

	var d model.RouterDecision
	var mode, historyJSON, refsJSON, candidatesJSON string
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.QuestionText, &d.ReformulatedQuestion,
		&historyJSON, &mode, &refsJSON, &candidatesJSON, &d.Reasoning, &d.ResponseTimeMS); err != nil {
		return nil, fmt.Errorf("store: router_decision_by_id: %w", err)
	}
	d.ModeSelected = model.RoutingMode(mode)
	if historyJSON != "" {
		_ = json.Unmarshal([]byte(historyJSON), &d.ConversationContext)
	}
	if refsJSON != "" {
		_ = json.Unmarshal([]byte(refsJSON), &d.ClaimCardsReferenced)
	}
	if candidatesJSON != "" {
		_ = json.Unmarshal([]byte(candidatesJSON), &d.SearchCandidates)
	}
	return &d, nil
}

// CountRouterDecisions supports P7's reset-preservation assertion.
func (s *Store) CountRouterDecisions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM router_decisions`).Scan(&n)
	return n, err
}
