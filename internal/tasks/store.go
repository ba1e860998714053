package tasks

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"clipdigest/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// Store persists tasks and summaries in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the task database at path and applies
// the schema. Use ":memory:" for an ephemeral store in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "open", "open task database", err)
	}

	// modernc sqlite serializes access per connection; a single connection
	// avoids SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, services.Wrap(services.ErrStorage, "store", "open", fmt.Sprintf("apply %s", pragma), err)
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrations run in order; each entry's index+1 is its version. Never edit a
// shipped migration, append a new one.
var migrations = []string{
	schemaSQL,
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return services.Wrap(services.ErrStorage, "store", "migrate", "create migrations table", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return services.Wrap(services.ErrStorage, "store", "migrate", "read schema version", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrStorage, "store", "migrate", "begin migration", err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return services.Wrap(services.ErrStorage, "store", "migrate",
				fmt.Sprintf("apply migration %d", version), err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return services.Wrap(services.ErrStorage, "store", "migrate",
				fmt.Sprintf("record migration %d", version), err)
		}
		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrStorage, "store", "migrate",
				fmt.Sprintf("commit migration %d", version), err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new pending task for the given source URL.
func (s *Store) Create(ctx context.Context, sourceURL string, platform Platform) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		SourceURL: sourceURL,
		Platform:  platform,
		Status:    StatusPending,
		Progress:  ProgressPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (source_url, platform, status, progress, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		task.SourceURL, string(task.Platform), string(task.Status), task.Progress,
		task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "create", "insert task", err)
	}

	task.ID, err = result.LastInsertId()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "create", "read inserted id", err)
	}
	return task, nil
}

// GetByID fetches a single task. Returns a NotFound error when no task with
// the given id exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, selectTaskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get", fmt.Sprintf("task %d not found", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "store", "get", "scan task", err)
	}
	return task, nil
}

// Update persists all mutable fields of the task and bumps updated_at.
func (s *Store) Update(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			source_url = ?, video_id = ?, platform = ?, status = ?, progress = ?,
			video_key = ?, audio_key = ?, transcript_key = ?, summary_key = ?,
			transcription = ?, summary = ?, error_message = ?,
			updated_at = ?, completed_at = ?
		WHERE id = ?`,
		task.SourceURL, task.VideoID, string(task.Platform), string(task.Status), task.Progress,
		task.VideoKey, task.AudioKey, task.TranscriptKey, task.SummaryKey,
		task.Transcription, task.Summary, task.ErrorMessage,
		task.UpdatedAt, nullableTime(task.CompletedAt),
		task.ID,
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "update", "update task", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "update", "read rows affected", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update", fmt.Sprintf("task %d not found", task.ID), nil)
	}
	return nil
}

// Delete removes a task. Attached summaries go with it via the foreign key
// cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "delete", "delete task", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return services.Wrap(services.ErrStorage, "store", "delete", "read rows affected", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete", fmt.Sprintf("task %d not found", id), nil)
	}
	return nil
}
