package tasks

import (
	"database/sql"
	"time"
)

const selectTaskColumns = `SELECT id, source_url, video_id, platform, status, progress,
	video_key, audio_key, transcript_key, summary_key,
	transcription, summary, error_message,
	created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task        Task
		platform    string
		status      string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&task.ID, &task.SourceURL, &task.VideoID, &platform, &status, &task.Progress,
		&task.VideoKey, &task.AudioKey, &task.TranscriptKey, &task.SummaryKey,
		&task.Transcription, &task.Summary, &task.ErrorMessage,
		&task.CreatedAt, &task.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Platform = Platform(platform)
	task.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	defer rows.Close()
	var out []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
