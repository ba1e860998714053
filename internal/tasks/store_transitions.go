package tasks

import (
	"context"
	"fmt"
	"time"

	"clipdigest/internal/services"
)

// ClaimNextPending atomically moves the oldest pending task to downloading and
// returns it. Returns nil when no pending work exists.
func (s *Store) ClaimNextPending(ctx context.Context) (*Task, error) {
	task, err := s.NextPending(ctx)
	if err != nil || task == nil {
		return task, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(StatusDownloading), now, task.ID, string(StatusPending))
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "claim", "claim task", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "claim", "read rows affected", err)
	}
	if affected == 0 {
		// Someone else claimed it between select and update.
		return nil, nil
	}
	task.Status = StatusDownloading
	task.UpdatedAt = now
	return task, nil
}

// Retry resets a terminal task back to pending, clearing the error and
// progress so the full pipeline runs again.
func (s *Store) Retry(ctx context.Context, id int64) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.Status.IsTerminal() {
		return nil, services.Wrap(services.ErrInvalidState, "store", "retry",
			fmt.Sprintf("task %d is %s; only completed or failed tasks can be retried", id, task.Status), nil)
	}

	task.Status = StatusPending
	task.Progress = ProgressPending
	task.ErrorMessage = ""
	task.CompletedAt = nil
	if err := s.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ResetStuckProcessing returns tasks that sat in a processing status for
// longer than maxAge back to pending. Pass zero maxAge to reset all
// processing tasks regardless of age, as done once at daemon startup.
func (s *Store) ResetStuckProcessing(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()
	query := `UPDATE tasks SET status = ?, progress = 0, error_message = '', updated_at = ?
		WHERE status IN (?, ?, ?, ?)`
	args := []any{
		string(StatusPending), now,
		string(StatusDownloading), string(StatusExtractingAudio),
		string(StatusTranscribing), string(StatusSummarizing),
	}
	if maxAge > 0 {
		query += " AND updated_at < ?"
		args = append(args, now.Add(-maxAge))
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "reset-stuck", "reset stuck tasks", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "reset-stuck", "read rows affected", err)
	}
	return affected, nil
}
