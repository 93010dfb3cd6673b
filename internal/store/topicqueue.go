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

// CreateTopicQueueEntry enqueues a topic for the scheduler, defaulting
// Status to queued.
func (s *Store) CreateTopicQueueEntry(ctx context.Context, entry *model.TopicQueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = model.TopicQueued
	}
	now := time.Now().UTC()
	entry.CreatedAt, entry.UpdatedAt = now, now

	idsJSON, err := json.Marshal(entry.ClaimCardIDs)
	if err != nil {
		return fmt.Errorf("store: marshal claim_card_ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topic_queue (
			id, created_at, updated_at, topic_text, priority, status,
			review_status, source, claim_card_ids, blog_post_id,
			error_message, retry_count, scheduled_for, admin_feedback
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt, entry.UpdatedAt, entry.TopicText, entry.Priority,
		string(entry.Status), string(entry.ReviewStatus), entry.Source, string(idsJSON),
		entry.BlogPostID, entry.ErrorMessage, entry.RetryCount, entry.ScheduledFor, entry.AdminFeedback,
	)
	if err != nil {
		return fmt.Errorf("store: create_topic_queue_entry: %w", err)
	}
	return nil
}

// TopicQueueEntryByID fetches a single queue entry.
func (s *Store) TopicQueueEntryByID(ctx context.Context, id string) (*model.TopicQueueEntry, error) {
	return scanTopicQueueEntry(s.db.QueryRowContext(ctx, topicQueueSelect+` WHERE id = ?`, id))
}

// ListTopicQueueEntries returns queue entries, optionally filtered by
// status, ordered by descending priority then ascending created_at (the
// order the scheduler consumes them in).
func (s *Store) ListTopicQueueEntries(ctx context.Context, status model.TopicStatus) ([]model.TopicQueueEntry, error) {
	query := topicQueueSelect
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list_topic_queue_entries: %w", err)
	}
	defer rows.Close()

	var out []model.TopicQueueEntry
	for rows.Next() {
		e, err := scanTopicQueueEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LeaseNextQueued atomically claims the highest-priority queued topic by
// transitioning it to processing (spec §5: "scheduler takes exclusive
// lease on topic row via status transition queued -> processing"). Returns
// nil, nil if nothing is queued.
func (s *Store) LeaseNextQueued(ctx context.Context) (entry *model.TopicQueueEntry, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin lease: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM topic_queue WHERE status = ?
		ORDER BY priority DESC, created_at ASC LIMIT 1`, string(model.TopicQueued)).Scan(&id)
	if err == sql.ErrNoRows {
		err = nil
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, fmt.Errorf("store: lease_next_queued: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE topic_queue SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.TopicProcessing), now, id, string(model.TopicQueued))
	if err != nil {
		return nil, fmt.Errorf("store: lease_next_queued update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost the race to another leaser; caller retries on its own cadence.
		return nil, tx.Commit()
	}

	entry, err = scanTopicQueueEntry(tx.QueryRowContext(ctx, topicQueueSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return entry, tx.Commit()
}

// UpdateTopicQueueEntry persists status/result fields after a pipeline run
// or a reviewer decision.
func (s *Store) UpdateTopicQueueEntry(ctx context.Context, entry *model.TopicQueueEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	idsJSON, err := json.Marshal(entry.ClaimCardIDs)
	if err != nil {
		return fmt.Errorf("store: marshal claim_card_ids: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE topic_queue SET
			updated_at = ?, status = ?, review_status = ?, claim_card_ids = ?,
			blog_post_id = ?, error_message = ?, retry_count = ?,
			scheduled_for = ?, admin_feedback = ?
		WHERE id = ?`,
		entry.UpdatedAt, string(entry.Status), string(entry.ReviewStatus), string(idsJSON),
		entry.BlogPostID, entry.ErrorMessage, entry.RetryCount, entry.ScheduledFor,
		entry.AdminFeedback, entry.ID)
	if err != nil {
		return fmt.Errorf("store: update_topic_queue_entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: topic queue entry %q not found", entry.ID)
	}
	return nil
}

const topicQueueSelect = `
	SELECT id, created_at, updated_at, topic_text, priority, status,
		review_status, source, claim_card_ids, blog_post_id,
		error_message, retry_count, scheduled_for, admin_feedback
	FROM topic_queue`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTopicQueueEntry(row *sql.Row) (*model.TopicQueueEntry, error) {
	e, err := scanTopicQueueEntryRows(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: topic queue entry not found")
	}
	return e, err
}

func scanTopicQueueEntryRows(row rowScanner) (*model.TopicQueueEntry, error) {
	var e model.TopicQueueEntry
	var status, reviewStatus string
	var source, blogPostID, errMsg, adminFeedback sql.NullString
	var idsJSON string
	var scheduledFor sql.NullTime

	if err := row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.TopicText, &e.Priority,
		&status, &reviewStatus, &source, &idsJSON, &blogPostID, &errMsg,
		&e.RetryCount, &scheduledFor, &adminFeedback); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan topic_queue: %w", err)
	}

	e.Status = model.TopicStatus(status)
	e.ReviewStatus = model.ReviewStatus(reviewStatus)
	e.Source = source.String
	e.BlogPostID = blogPostID.String
	e.ErrorMessage = errMsg.String
	e.AdminFeedback = adminFeedback.String
	if scheduledFor.Valid {
		t := scheduledFor.Time
		e.ScheduledFor = &t
	}
	if idsJSON != "" {
		_ = json.Unmarshal([]byte(idsJSON), &e.ClaimCardIDs)
	}
	return &e, nil
}

// CountTopicQueueEntries supports P7's reset-preservation assertion.
func (s *Store) CountTopicQueueEntries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topic_queue`).Scan(&n)
	return n, err
}
