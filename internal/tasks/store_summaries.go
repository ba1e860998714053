package tasks

import (
	"context"
	"fmt"
	"time"

	"clipdigest/internal/services"
)

// AddSummary appends a summary record for a task. The record's sort order is
// the number of summaries already stored, so records read back in insertion
// order. The newest content is also mirrored onto the task row for quick
// listing.
func (s *Store) AddSummary(ctx context.Context, record *SummaryRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "begin transaction", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM summaries WHERE task_id = ?", record.TaskID).Scan(&count); err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "count existing summaries", err)
	}
	record.SortOrder = count
	record.CreatedAt = time.Now().UTC()
	if record.Name == "" {
		record.Name = fmt.Sprintf("Summary %d", count+1)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (task_id, name, content, custom_prompt, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.TaskID, record.Name, record.Content, record.CustomPrompt,
		record.SortOrder, record.CreatedAt,
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "insert summary", err)
	}
	record.ID, err = result.LastInsertId()
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "read inserted id", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE tasks SET summary = ?, updated_at = ? WHERE id = ?",
		record.Content, record.CreatedAt, record.TaskID); err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "mirror summary onto task", err)
	}

	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrStorage, "store", "add-summary", "commit", err)
	}
	return nil
}

// SummariesForTask returns a task's summaries in insertion order.
func (s *Store) SummariesForTask(ctx context.Context, taskID int64) ([]*SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, name, content, custom_prompt, sort_order, created_at
		FROM summaries WHERE task_id = ? ORDER BY sort_order ASC, id ASC`, taskID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "summaries", "query summaries", err)
	}
	defer rows.Close()

	var out []*SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Name, &rec.Content,
			&rec.CustomPrompt, &rec.SortOrder, &rec.CreatedAt); err != nil {
			return nil, services.Wrap(services.ErrStorage, "store", "summaries", "scan summary", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "summaries", "iterate summaries", err)
	}
	return out, nil
}
