package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, source_video, subtitle_path, title, status, stage,
	progress_percent, progress_message, output_path, error_message,
	created_at, updated_at`

// NewJob inserts a pending dubbing job.
func (s *Store) NewJob(ctx context.Context, sourceVideo, subtitlePath, title string) (*Item, error) {
	sourceVideo = strings.TrimSpace(sourceVideo)
	subtitlePath = strings.TrimSpace(subtitlePath)
	if sourceVideo == "" || subtitlePath == "" {
		return nil, errors.New("queue: source video and subtitle path are required")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		INSERT INTO queue_items (source_video, subtitle_path, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sourceVideo, subtitlePath, strings.TrimSpace(title), string(StatusPending), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("queue item id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches one item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return item, err
}

// Update persists the item's mutable fields.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("queue: nil item")
	}
	if !item.Status.Valid() {
		return fmt.Errorf("queue: invalid status %q", item.Status)
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx, `
		UPDATE queue_items
		SET title = ?, status = ?, stage = ?, progress_percent = ?, progress_message = ?,
		    output_path = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		item.Title, string(item.Status), item.Stage, item.ProgressPercent, item.ProgressMessage,
		item.OutputPath, item.ErrorMessage, item.UpdatedAt.Format(time.RFC3339Nano), item.ID)
	if err != nil {
		return fmt.Errorf("update queue item %d: %w", item.ID, err)
	}
	return nil
}

// List returns items, optionally filtered by status, oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := "SELECT " + itemColumns + " FROM queue_items"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NextPending atomically claims the oldest pending item, marking it running.
// Returns nil when the queue is empty.
func (s *Store) NextPending(ctx context.Context) (*Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE status = ? ORDER BY id LIMIT 1",
		string(StatusPending))
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	item.Status = StatusRunning
	item.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE queue_items SET status = ?, updated_at = ? WHERE id = ?",
		string(StatusRunning), item.UpdatedAt.Format(time.RFC3339Nano), item.ID); err != nil {
		return nil, fmt.Errorf("claim queue item %d: %w", item.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return item, nil
}

// ResetStuckRunning returns running items to pending, e.g. after a crash.
// Reports how many items were reset.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?",
		string(StatusPending), time.Now().UTC().Format(time.RFC3339Nano), string(StatusRunning))
	if err != nil {
		return 0, fmt.Errorf("reset running items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed returns failed items to pending, clearing their errors.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"UPDATE queue_items SET status = ?, error_message = '', updated_at = ? WHERE status = ?",
		string(StatusPending), time.Now().UTC().Format(time.RFC3339Nano), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes items with the given statuses; with none given, everything.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := "DELETE FROM queue_items"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue items: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates item counts per lifecycle state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM queue_items GROUP BY status")
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var status, createdAt, updatedAt string
	err := row.Scan(&item.ID, &item.SourceVideo, &item.SubtitlePath, &item.Title,
		&status, &item.Stage, &item.ProgressPercent, &item.ProgressMessage,
		&item.OutputPath, &item.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.Status = Status(status)
	if item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &item, nil
}
