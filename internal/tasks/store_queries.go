package tasks

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"clipdigest/internal/services"
)

var taskColumns = []string{
	"id", "source_url", "video_id", "platform", "status", "progress",
	"video_key", "audio_key", "transcript_key", "summary_key",
	"transcription", "summary", "error_message",
	"created_at", "updated_at", "completed_at",
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	Statuses []Status
	Offset   int
	Limit    int
	// OrderByUpdated sorts by last modification instead of creation time.
	OrderByUpdated bool
}

// List returns tasks newest first, optionally filtered by status, plus the
// total count matching the filter (ignoring paging).
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Task, int, error) {
	orderCol := "created_at"
	if filter.OrderByUpdated {
		orderCol = "updated_at"
	}
	countBuilder := sq.Select("COUNT(*)").From("tasks")
	builder := sq.Select(taskColumns...).
		From("tasks").
		OrderBy(orderCol+" DESC", "id DESC")
	if len(filter.Statuses) > 0 {
		where := sq.Eq{"status": statusStrings(filter.Statuses)}
		countBuilder = countBuilder.Where(where)
		builder = builder.Where(where)
	}

	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, services.Wrap(services.ErrStorage, "store", "list", "build count query", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, services.Wrap(services.ErrStorage, "store", "list", "count tasks", err)
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, 0, services.Wrap(services.ErrStorage, "store", "list", "build list query", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrStorage, "store", "list", "query tasks", err)
	}
	out, err := collectTasks(rows)
	if err != nil {
		return nil, 0, services.Wrap(services.ErrStorage, "store", "list", "scan tasks", err)
	}
	return out, total, nil
}

// Active returns every task that has not reached a terminal state, in queue
// order.
func (s *Store) Active(ctx context.Context) ([]*Task, error) {
	statuses := append([]Status{StatusPending}, ProcessingStatuses()...)
	query, args, err := sq.Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"status": statusStrings(statuses)}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "active", "build query", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "active", "query tasks", err)
	}
	out, err := collectTasks(rows)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "active", "scan tasks", err)
	}
	return out, nil
}

// CountActive returns how many tasks are in a processing status.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").
		From("tasks").
		Where(sq.Eq{"status": statusStrings(ProcessingStatuses())}).
		ToSql()
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "count-active", "build query", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, services.Wrap(services.ErrStorage, "store", "count-active", "count tasks", err)
	}
	return n, nil
}

// NextPending returns the oldest pending task, or nil when the queue is empty.
func (s *Store) NextPending(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		selectTaskColumns+" FROM tasks WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		string(StatusPending))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "next-pending", "scan task", err)
	}
	return task, nil
}

// FindCompletedByVideoID returns the most recent completed task for a video,
// or nil when none exists. Used to reuse cached artifacts across submissions.
func (s *Store) FindCompletedByVideoID(ctx context.Context, videoID string) (*Task, error) {
	if videoID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		selectTaskColumns+" FROM tasks WHERE video_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1",
		videoID, string(StatusCompleted))
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "find-completed", "scan task", err)
	}
	return task, nil
}
