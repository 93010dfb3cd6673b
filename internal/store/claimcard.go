package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/model"
)

// Embedder is the narrow slice of the Embedding Service (internal/embed)
// the Claim Store needs. Declared here rather than imported to keep
// internal/store free of a dependency on internal/embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// InsertClaimCard computes the card's embedding, validates it, and writes
// the card plus its Sources and tags in one transaction (spec §4.A
// "insert"). It fails without touching the database if claim_text is
// empty or any card-level invariant (§3) is unmet.
func (s *Store) InsertClaimCard(ctx context.Context, card *model.ClaimCard, embedder Embedder) (err error) {
	if strings.TrimSpace(card.ClaimText) == "" {
		return fmt.Errorf("store: claim_text must not be empty")
	}

	vec, err := embedder.Embed(ctx, card.ClaimText)
	if err != nil {
		return fmt.Errorf("store: embed claim text: %w", err)
	}
	card.Embedding = vec

	if err := card.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	card.CreatedAt, card.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin insert: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = insertClaimCardTx(ctx, tx, card); err != nil {
		return err
	}
	return tx.Commit()
}

func insertClaimCardTx(ctx context.Context, tx *sql.Tx, card *model.ClaimCard) error {
	whyJSON, err := json.Marshal(card.WhyPersists)
	if err != nil {
		return fmt.Errorf("store: marshal why_persists: %w", err)
	}
	auditJSON, err := json.Marshal(card.AgentAudit)
	if err != nil {
		return fmt.Errorf("store: marshal agent_audit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claim_cards (
			id, created_at, updated_at, claim_text, claimant, claim_type,
			claim_type_category, verdict, short_answer, deep_answer,
			why_persists, confidence_level, confidence_explanation,
			agent_audit, visible_in_audits, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.CreatedAt, card.UpdatedAt, card.ClaimText, card.Claimant,
		card.ClaimType, string(card.ClaimTypeCategory), string(card.Verdict),
		card.ShortAnswer, card.DeepAnswer, string(whyJSON),
		string(card.ConfidenceLevel), card.ConfidenceExplanation,
		string(auditJSON), card.VisibleInAudits, encodeVector(card.Embedding),
	)
	if err != nil {
		return fmt.Errorf("store: insert claim_cards: %w", err)
	}

	for i := range card.Sources {
		src := &card.Sources[i]
		if src.ID == "" {
			src.ID = uuid.NewString()
		}
		src.ClaimCardID = card.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sources (
				id, claim_card_id, citation, url, quote_text, usage_context,
				source_type, verification_method, verification_status,
				content_type, url_verified
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			src.ID, src.ClaimCardID, src.Citation, src.URL, src.QuoteText,
			src.UsageContext, string(src.SourceType), string(src.VerificationMethod),
			string(src.VerificationStatus), string(src.ContentType), src.URLVerified,
		)
		if err != nil {
			return fmt.Errorf("store: insert source: %w", err)
		}
	}

	for _, tag := range card.ApologeticsTags {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO apologetics_tags (claim_card_id, tag) VALUES (?, ?)`,
			card.ID, tag); err != nil {
			return fmt.Errorf("store: insert apologetics_tag: %w", err)
		}
	}
	for _, tag := range card.CategoryTags {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO category_tags (claim_card_id, tag) VALUES (?, ?)`,
			card.ID, tag); err != nil {
			return fmt.Errorf("store: insert category_tag: %w", err)
		}
	}
	return nil
}

// UpdateClaimText mutates a card's claim_text and regenerates its
// embedding in the same transaction (spec §3 "embedding... MUST be
// regenerated whenever claim_text is mutated"; §5 "embedding regeneration
// on claim_text update happens inside that transaction"; P3).
func (s *Store) UpdateClaimText(ctx context.Context, id, newClaimText string, embedder Embedder) (err error) {
	if strings.TrimSpace(newClaimText) == "" {
		return fmt.Errorf("store: claim_text must not be empty")
	}

	vec, err := embedder.Embed(ctx, newClaimText)
	if err != nil {
		return fmt.Errorf("store: embed claim text: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin update: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE claim_cards SET claim_text = ?, embedding = ?, updated_at = ? WHERE id = ?`,
		newClaimText, encodeVector(vec), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: update claim_text: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update claim_text: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("store: claim card not found")
		return err
	}
	return tx.Commit()
}

// ClaimCardByID eager-loads a card with its sources and tags (spec §4.A).
func (s *Store) ClaimCardByID(ctx context.Context, id string) (*model.ClaimCard, error) {
	card, err := s.scanClaimCard(ctx, s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, claim_text, claimant, claim_type,
			claim_type_category, verdict, short_answer, deep_answer,
			why_persists, confidence_level, confidence_explanation,
			agent_audit, visible_in_audits, embedding
		FROM claim_cards WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if card.Sources, err = s.sourcesForCard(ctx, id); err != nil {
		return nil, err
	}
	if card.ApologeticsTags, err = s.tagsForCard(ctx, "apologetics_tags", id); err != nil {
		return nil, err
	}
	if card.CategoryTags, err = s.tagsForCard(ctx, "category_tags", id); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Store) scanClaimCard(ctx context.Context, row *sql.Row) (*model.ClaimCard, error) {
	var card model.ClaimCard
	var claimType, category, verdict, confidence string
	var claimant, deepAnswer, confExplanation sql.NullString
	var whyJSON, auditJSON string
	var embedding []byte

	err := row.Scan(
		&card.ID, &card.CreatedAt, &card.UpdatedAt, &card.ClaimText, &claimant,
		&claimType, &category, &verdict, &card.ShortAnswer, &deepAnswer,
		&whyJSON, &confidence, &confExplanation, &auditJSON,
		&card.VisibleInAudits, &embedding,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: claim card not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan claim card: %w", err)
	}

	card.Claimant = claimant.String
	card.ClaimType = claimType
	card.ClaimTypeCategory = model.ClaimTypeCategory(category)
	card.Verdict = model.Verdict(verdict)
	card.DeepAnswer = deepAnswer.String
	card.ConfidenceLevel = model.ConfidenceLevel(confidence)
	card.ConfidenceExplanation = confExplanation.String
	card.Embedding = decodeVector(embedding)

	if whyJSON != "" {
		_ = json.Unmarshal([]byte(whyJSON), &card.WhyPersists)
	}
	if auditJSON != "" {
		_ = json.Unmarshal([]byte(auditJSON), &card.AgentAudit)
	}
	return &card, nil
}

func (s *Store) sourcesForCard(ctx context.Context, claimCardID string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_card_id, citation, url, quote_text, usage_context,
			source_type, verification_method, verification_status,
			content_type, url_verified
		FROM sources WHERE claim_card_id = ?`, claimCardID)
	if err != nil {
		return nil, fmt.Errorf("store: query sources: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var src model.Source
		var sourceType, method, status, contentType string
		if err := rows.Scan(&src.ID, &src.ClaimCardID, &src.Citation, &src.URL,
			&src.QuoteText, &src.UsageContext, &sourceType, &method, &status,
			&contentType, &src.URLVerified); err != nil {
			return nil, fmt.Errorf("store: scan source: %w", err)
		}
		src.SourceType = model.SourceType(sourceType)
		src.VerificationMethod = model.VerificationMethod(method)
		src.VerificationStatus = model.VerificationStatus(status)
		src.ContentType = model.ContentType(contentType)
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) tagsForCard(ctx context.Context, table, claimCardID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT tag FROM %s WHERE claim_card_id = ?`, table), claimCardID)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", table, err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// SearchByEmbedding ranks ClaimCards by cosine similarity to vec, descending,
// ties broken by newer created_at, cut off at threshold and limit (spec
// §4.A). Used by the Router's search_existing_claims tool and the
// Decomposer's per-component-claim dedup check.
func (s *Store) SearchByEmbedding(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.SearchCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_text, short_answer, verdict, claim_type, claim_type_category, created_at,
			1 - vector_distance_cos(embedding, ?) AS similarity
		FROM claim_cards
		WHERE visible_in_audits = 1
		ORDER BY similarity DESC, created_at DESC`, encodeVector(vec))
	if err != nil {
		return nil, fmt.Errorf("store: search_by_embedding: %w", err)
	}
	defer rows.Close()

	var out []model.SearchCandidate
	for rows.Next() {
		var c model.SearchCandidate
		var claimType, category, verdict string
		var createdAt time.Time
		if err := rows.Scan(&c.ClaimID, &c.ClaimText, &c.ShortAnswer, &verdict,
			&claimType, &category, &createdAt, &c.Similarity); err != nil {
			return nil, fmt.Errorf("store: scan candidate: %w", err)
		}
		if c.Similarity < threshold {
			break // ORDER BY similarity DESC: nothing after this row qualifies either
		}
		c.Verdict = verdict
		c.ClaimType = claimType
		c.ClaimTypeCategory = category
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// AuditFilter narrows ListForAudits to the audits UI's filter controls.
type AuditFilter struct {
	Category string
	Verdict  string
	Search   string
	Limit    int
	Offset   int
}

// ListForAudits returns visible ClaimCards matching f, ordered newest
// first (spec §4.A, P6 — callers must not see unpublished content, but
// ClaimCards themselves are audit-visible independent of BlogPost
// publication state per §4.J "rejection... retains ClaimCards").
func (s *Store) ListForAudits(ctx context.Context, f AuditFilter) ([]model.ClaimCard, error) {
	query := `SELECT id FROM claim_cards WHERE visible_in_audits = 1`
	var args []any
	if f.Category != "" {
		query += ` AND claim_type_category = ?`
		args = append(args, f.Category)
	}
	if f.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, f.Verdict)
	}
	if f.Search != "" {
		query += ` AND claim_text LIKE ?`
		args = append(args, "%"+f.Search+"%")
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list_for_audits: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan audit row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ClaimCard, 0, len(ids))
	for _, id := range ids {
		card, err := s.ClaimCardByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *card)
	}
	return out, nil
}

// DeleteGeneratedContent wipes every generated artifact in a single
// transaction, preserving AgentPrompts and VerifiedSources, children
// before parents (spec §5 "Database reset"). Rolls back on any error.
func (s *Store) DeleteGeneratedContent(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM router_decisions`,
		`DELETE FROM blog_posts`,
		`DELETE FROM sources`,
		`DELETE FROM apologetics_tags`,
		`DELETE FROM category_tags`,
		`DELETE FROM claim_cards`,
		`DELETE FROM topic_queue`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: reset %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// CountClaimCards supports P7's reset-preservation assertion.
func (s *Store) CountClaimCards(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM claim_cards`).Scan(&n)
	return n, err
}
