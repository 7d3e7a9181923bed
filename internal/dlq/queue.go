// Package dlq is a durable retry ledger for batches that exhausted
// in-process retries (internal/updater's processBatchWithRetry). A
// failed batch is recorded here, keyed by (graph_id, episode_id), so an
// operator can inspect or replay it instead of losing it silently.
//
// Grounded in the teacher's internal/dlq.Queue (Postgres dead-letter
// queue keyed by repo_id/commit_sha), adapted from a commit-processing
// ledger to an episode-processing ledger and moved from lib/pq to
// mattn/go-sqlite3 + jmoiron/sqlx (spec.md's deployment has no Postgres
// dependency; a local SQLite file is the teacher's own fallback story
// for single-binary installs).
package dlq

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Entry is one failed batch awaiting operator attention or replay.
type Entry struct {
	ID           int64
	GraphID      string
	EpisodeID    string
	Platform     string
	ErrorMessage string
	RetryCount   int
	LastRetryAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Payload      map[string]interface{}
}

type entryRow struct {
	ID           int64          `db:"id"`
	GraphID      string         `db:"graph_id"`
	EpisodeID    string         `db:"episode_id"`
	Platform     string         `db:"platform"`
	ErrorMessage string         `db:"error_message"`
	RetryCount   int            `db:"retry_count"`
	LastRetryAt  sql.NullTime   `db:"last_retry_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	PayloadJSON  sql.NullString `db:"payload"`
}

func (r entryRow) toEntry(logger *slog.Logger) Entry {
	e := Entry{
		ID:           r.ID,
		GraphID:      r.GraphID,
		EpisodeID:    r.EpisodeID,
		Platform:     r.Platform,
		ErrorMessage: r.ErrorMessage,
		RetryCount:   r.RetryCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Payload:      make(map[string]interface{}),
	}
	if r.LastRetryAt.Valid {
		t := r.LastRetryAt.Time
		e.LastRetryAt = &t
	}
	if r.PayloadJSON.Valid && r.PayloadJSON.String != "" {
		if err := json.Unmarshal([]byte(r.PayloadJSON.String), &e.Payload); err != nil {
			logger.Warn("failed to unmarshal DLQ payload", "entry_id", e.ID, "error", err)
			e.Payload = make(map[string]interface{})
		}
	}
	return e
}

// Queue manages failed-batch records for one SQLite database.
type Queue struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewQueue wraps an already-open database handle.
func NewQueue(db *sqlx.DB) *Queue {
	return &Queue{
		db:     db,
		logger: slog.Default().With("component", "dlq"),
	}
}

// Migrate creates the dead_letter_queue table if it does not exist.
func (q *Queue) Migrate(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dead_letter_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			graph_id TEXT NOT NULL,
			episode_id TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0,
			last_retry_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			payload TEXT,
			UNIQUE(graph_id, episode_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate dead_letter_queue: %w", err)
	}
	return nil
}

// Enqueue records a failed batch, or bumps retry_count if that
// (graph_id, episode_id) pair is already present.
func (q *Queue) Enqueue(ctx context.Context, graphID, episodeID, platform string, payload map[string]interface{}, batchErr error) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ payload: %w", err)
	}

	_, dbErr := q.db.ExecContext(ctx, `
		INSERT INTO dead_letter_queue (graph_id, episode_id, platform, error_message, retry_count, payload, last_retry_at)
		VALUES (?, ?, ?, ?, 0, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(graph_id, episode_id) DO UPDATE SET
			retry_count = retry_count + 1,
			error_message = excluded.error_message,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP,
			last_retry_at = CURRENT_TIMESTAMP
	`, graphID, episodeID, platform, batchErr.Error(), string(payloadJSON))
	if dbErr != nil {
		return fmt.Errorf("failed to enqueue episode to DLQ: %w", dbErr)
	}

	q.logger.Warn("episode enqueued to DLQ",
		"graph_id", graphID,
		"episode_id", episodeID,
		"error", batchErr.Error(),
	)
	return nil
}

// GetPendingRetries returns entries for a graph still under maxRetries.
func (q *Queue) GetPendingRetries(ctx context.Context, graphID string, maxRetries int) ([]Entry, error) {
	var rows []entryRow
	err := q.db.SelectContext(ctx, &rows, `
		SELECT id, graph_id, episode_id, platform, error_message, retry_count, last_retry_at, created_at, updated_at, payload
		FROM dead_letter_queue
		WHERE graph_id = ? AND retry_count < ?
		ORDER BY created_at ASC
	`, graphID, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to query DLQ: %w", err)
	}
	return toEntries(rows, q.logger), nil
}

// MarkResolved removes an entry after a successful replay.
func (q *Queue) MarkResolved(ctx context.Context, graphID, episodeID string) error {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM dead_letter_queue WHERE graph_id = ? AND episode_id = ?
	`, graphID, episodeID)
	if err != nil {
		return fmt.Errorf("failed to delete DLQ entry: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		q.logger.Info("episode resolved and removed from DLQ", "graph_id", graphID, "episode_id", episodeID)
	}
	return nil
}

// Stats summarizes one graph's DLQ entries.
type Stats struct {
	GraphID          string
	TotalEntries     int
	RetryableEntries int
	ExhaustedRetries int
}

// GetStats reports entry counts for a graph, splitting entries at
// maxRetries into retryable vs. exhausted.
func (q *Queue) GetStats(ctx context.Context, graphID string, maxRetries int) (*Stats, error) {
	stats := &Stats{GraphID: graphID}
	err := q.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN retry_count >= ? THEN 1 END),
			COUNT(CASE WHEN retry_count < ? THEN 1 END)
		FROM dead_letter_queue
		WHERE graph_id = ?
	`, maxRetries, maxRetries, graphID).Scan(&stats.TotalEntries, &stats.ExhaustedRetries, &stats.RetryableEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to get DLQ stats: %w", err)
	}
	return stats, nil
}

// GetRecentFailures returns the most recently updated entries for a
// graph, newest first.
func (q *Queue) GetRecentFailures(ctx context.Context, graphID string, limit int) ([]Entry, error) {
	var rows []entryRow
	err := q.db.SelectContext(ctx, &rows, `
		SELECT id, graph_id, episode_id, platform, error_message, retry_count, last_retry_at, created_at, updated_at, payload
		FROM dead_letter_queue
		WHERE graph_id = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, graphID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent failures: %w", err)
	}
	return toEntries(rows, q.logger), nil
}

// PurgeOld removes entries older than olderThan, across all graphs.
func (q *Queue) PurgeOld(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := q.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge old DLQ entries: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.Info("purged old DLQ entries", "count", rows, "older_than", olderThan)
	}
	return int(rows), nil
}

func toEntries(rows []entryRow, logger *slog.Logger) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toEntry(logger))
	}
	return entries
}
