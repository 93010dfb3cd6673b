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

// InsertBlogPost persists a Composer's output, owned by exactly one
// TopicQueueEntry (spec §3 "BlogPost").
func (s *Store) InsertBlogPost(ctx context.Context, post *model.BlogPost) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	idsJSON, err := json.Marshal(post.ClaimCardIDs)
	if err != nil {
		return fmt.Errorf("store: marshal claim_card_ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blog_posts (
			id, created_at, topic_queue_id, title, article_body,
			claim_card_ids, published_at, reviewed_by, review_notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.CreatedAt, post.TopicQueueID, post.Title, post.ArticleBody,
		string(idsJSON), post.PublishedAt, post.ReviewedBy, post.ReviewNotes,
	)
	if err != nil {
		return fmt.Errorf("store: insert_blog_post: %w", err)
	}
	return nil
}

// BlogPostByID fetches a single blog post.
func (s *Store) BlogPostByID(ctx context.Context, id string) (*model.BlogPost, error) {
	return scanBlogPost(s.db.QueryRowContext(ctx, blogPostSelect+` WHERE id = ?`, id))
}

// BlogPostByTopicQueueID fetches the one-to-one post owned by a topic.
func (s *Store) BlogPostByTopicQueueID(ctx context.Context, topicQueueID string) (*model.BlogPost, error) {
	return scanBlogPost(s.db.QueryRowContext(ctx, blogPostSelect+` WHERE topic_queue_id = ?`, topicQueueID))
}

// PublishBlogPost sets published_at, the effect of reviewer approval
// (spec §4.J "Approval sets blog_post.published_at").
func (s *Store) PublishBlogPost(ctx context.Context, id, reviewedBy string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE blog_posts SET published_at = ?, reviewed_by = ? WHERE id = ?`,
		now, reviewedBy, id)
	if err != nil {
		return fmt.Errorf("store: publish_blog_post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: blog post %q not found", id)
	}
	return nil
}

// ListPublishedBlogPosts is the public read listing: P6 requires that no
// unpublished post ever appears here.
func (s *Store) ListPublishedBlogPosts(ctx context.Context, limit, offset int) ([]model.BlogPost, error) {
	query := blogPostSelect + ` WHERE published_at IS NOT NULL ORDER BY published_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list_published_blog_posts: %w", err)
	}
	defer rows.Close()

	var out []model.BlogPost
	for rows.Next() {
		p, err := scanBlogPostRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountBlogPosts supports P7's reset-preservation assertion.
func (s *Store) CountBlogPosts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blog_posts`).Scan(&n)
	return n, err
}

const blogPostSelect = `
	SELECT id, created_at, topic_queue_id, title, article_body,
		claim_card_ids, published_at, reviewed_by, review_notes
	FROM blog_posts`

func scanBlogPost(row *sql.Row) (*model.BlogPost, error) {
	p, err := scanBlogPostRows(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: blog post not found")
	}
	return p, err
}

func scanBlogPostRows(row rowScanner) (*model.BlogPost, error) {
	var p model.BlogPost
	var idsJSON string
	var reviewedBy, reviewNotes sql.NullString
	var publishedAt sql.NullTime

	if err := row.Scan(&p.ID, &p.CreatedAt, &p.TopicQueueID, &p.Title, &p.ArticleBody,
		&idsJSON, &publishedAt, &reviewedBy, &reviewNotes); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan blog_post: %w", err)
	}
	p.ReviewedBy = reviewedBy.String
	p.ReviewNotes = reviewNotes.String
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	if idsJSON != "" {
		_ = json.Unmarshal([]byte(idsJSON), &p.ClaimCardIDs)
	}
	return &p, nil
}
