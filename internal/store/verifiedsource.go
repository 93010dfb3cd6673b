package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-audit/veritas/internal/model"
)

// UpsertVerifiedSource adds vs to the long-lived library, keyed by its
// normalized identifier (spec §4.D: "dedup on conflict"). A conflicting
// insert replaces the stored metadata with the latest verified values but
// never touches claim-specific content, since VerifiedSource carries none.
func (s *Store) UpsertVerifiedSource(ctx context.Context, vs *model.VerifiedSource) error {
	if vs.ID == "" {
		vs.ID = uuid.NewString()
	}
	if vs.CreatedAt.IsZero() {
		vs.CreatedAt = time.Now().UTC()
	}
	keywordsJSON, err := json.Marshal(vs.TopicKeywords)
	if err != nil {
		return fmt.Errorf("store: marshal topic_keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verified_sources (
			id, created_at, source_type, title, author, publisher,
			publication_date, isbn, doi, url, content_snippet, topic_keywords,
			embedding, verification_method, verification_status, normalized_identifier
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_identifier) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			publisher = excluded.publisher,
			publication_date = excluded.publication_date,
			isbn = excluded.isbn,
			doi = excluded.doi,
			url = excluded.url,
			content_snippet = excluded.content_snippet,
			topic_keywords = excluded.topic_keywords,
			embedding = excluded.embedding,
			verification_method = excluded.verification_method,
			verification_status = excluded.verification_status`,
		vs.ID, vs.CreatedAt, vs.SourceType, vs.Title, vs.Author, vs.Publisher,
		vs.PublicationDate, vs.ISBN, vs.DOI, vs.URL, vs.ContentSnippet, string(keywordsJSON),
		encodeVector(vs.Embedding), string(vs.VerificationMethod), string(vs.VerificationStatus),
		vs.NormalizedIdentifier(),
	)
	if err != nil {
		return fmt.Errorf("store: upsert_verified_source: %w", err)
	}
	return nil
}

// SearchVerifiedSources is Tier 0's "library reuse" lookup (spec §4.D): the
// top matches by cosine similarity to vec, at or above threshold, capped
// at limit.
func (s *Store) SearchVerifiedSources(ctx context.Context, vec []float32, threshold float64, limit int) ([]model.VerifiedSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source_type, title, author, publisher,
			publication_date, isbn, doi, url, content_snippet, topic_keywords,
			embedding, verification_method, verification_status,
			1 - vector_distance_cos(embedding, ?) AS similarity
		FROM verified_sources
		ORDER BY similarity DESC`, encodeVector(vec))
	if err != nil {
		return nil, fmt.Errorf("store: search_verified_sources: %w", err)
	}
	defer rows.Close()

	var out []model.VerifiedSource
	for rows.Next() {
		var vs model.VerifiedSource
		var sourceType, method, status, keywordsJSON string
		var title, author, publisher, pubDate, isbn, doi, url, snippet sql.NullString
		var embedding []byte
		var similarity float64
		if err := rows.Scan(&vs.ID, &vs.CreatedAt, &sourceType, &title, &author, &publisher,
			&pubDate, &isbn, &doi, &url, &snippet, &keywordsJSON, &embedding,
			&method, &status, &similarity); err != nil {
			return nil, fmt.Errorf("store: scan verified_source: %w", err)
		}
		if similarity < threshold {
			break
		}
		vs.SourceType, vs.Title, vs.Author, vs.Publisher = sourceType, title.String, author.String, publisher.String
		vs.PublicationDate, vs.ISBN, vs.DOI, vs.URL, vs.ContentSnippet = pubDate.String, isbn.String, doi.String, url.String, snippet.String
		vs.Embedding = decodeVector(embedding)
		vs.VerificationMethod = model.VerificationMethod(method)
		vs.VerificationStatus = model.VerificationStatus(status)
		if keywordsJSON != "" {
			_ = json.Unmarshal([]byte(keywordsJSON), &vs.TopicKeywords)
		}
		out = append(out, vs)
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// CountVerifiedSources supports P7's reset-preservation assertion.
func (s *Store) CountVerifiedSources(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verified_sources`).Scan(&n)
	return n, err
}
