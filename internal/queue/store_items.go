package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewItem inserts an enqueued media file. The caller supplies the computed
// plan and initial status; the store assigns the identifier and timestamps.
func (s *Store) NewItem(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if item.SourcePath == "" {
		return nil, errors.New("source path is required")
	}
	if item.MimeType == "" {
		return nil, errors.New("mime type is required")
	}
	if item.Key == "" {
		item.Key = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}

	now := time.Now().UTC()
	timestamp := now.Format(timeLayout)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            item_key, source_path, mime_type, source_size, status,
            plan_json, step_index, outputs_json, attempts_json, warnings_json,
            error_kind, error_step, error_message, remote_url, retry_at,
            created_at, updated_at, progress_stage, progress_percent, progress_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Key,
		item.SourcePath,
		item.MimeType,
		item.SourceSize,
		item.Status,
		nullableString(item.PlanJSON),
		item.StepIndex,
		nullableString(item.OutputsJSON),
		nullableString(item.AttemptsJSON),
		nullableString(item.WarningsJSON),
		nullableString(item.ErrorKind),
		nullableString(item.ErrorStep),
		nullableString(item.ErrorMessage),
		nullableString(item.RemoteURL),
		nullableTime(item.RetryAt),
		timestamp,
		timestamp,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET source_path = ?, mime_type = ?, source_size = ?, status = ?,
             plan_json = ?, step_index = ?, outputs_json = ?, attempts_json = ?,
             warnings_json = ?, error_kind = ?, error_step = ?, error_message = ?,
             remote_url = ?, retry_at = ?, updated_at = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?
         WHERE id = ?`,
		item.SourcePath,
		item.MimeType,
		item.SourceSize,
		item.Status,
		nullableString(item.PlanJSON),
		item.StepIndex,
		nullableString(item.OutputsJSON),
		nullableString(item.AttemptsJSON),
		nullableString(item.WarningsJSON),
		nullableString(item.ErrorKind),
		nullableString(item.ErrorStep),
		nullableString(item.ErrorMessage),
		nullableString(item.RemoteURL),
		nullableTime(item.RetryAt),
		item.UpdatedAt.Format(timeLayout),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM queue_items`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
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

// NextReady returns the oldest item eligible for dispatch, excluding the
// provided in-flight identifiers. Retry-ready items (elapsed backoff) take
// priority over never-started ones to bound worst-case latency; otherwise
// scheduling is strict FIFO by creation time.
func (s *Store) NextReady(ctx context.Context, now time.Time, exclude []int64) (*Item, error) {
	nowValue := now.UTC().Format(timeLayout)

	query := `SELECT ` + itemColumns + ` FROM queue_items
        WHERE (
            (status IN (?, ?) AND retry_at IS NULL)
            OR (retry_at IS NOT NULL AND retry_at <= ? AND status NOT IN (?, ?, ?))
        )`
	args := []any{
		StatusPending, StatusAwaitingUpload,
		nowValue,
		StatusCompleted, StatusFailed, StatusCancelled,
	}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (` + makePlaceholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	query += ` ORDER BY CASE WHEN retry_at IS NOT NULL THEN 0 ELSE 1 END, created_at LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next ready item: %w", err)
	}
	return item, nil
}

// ResetStuckProcessing makes items left in-flight by a crashed run
// immediately retry-eligible. Returns the number of items reclaimed.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET retry_at = ?, updated_at = ?
         WHERE status IN (?, ?) AND retry_at IS NULL`,
		now,
		now,
		StatusProcessing,
		StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all items from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Cancelled  int
}

// Summarize aggregates queue counts for status displays.
func (s *Store) Summarize(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize queue: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch Status(status) {
		case StatusPending, StatusPlanning:
			summary.Pending += count
		case StatusProcessing, StatusAwaitingUpload, StatusUploading:
			summary.Processing += count
		case StatusFailed:
			summary.Failed += count
		case StatusCompleted:
			summary.Completed += count
		case StatusCancelled:
			summary.Cancelled += count
		}
	}
	return summary, rows.Err()
}
