// Package testsupport provides shared helpers and fakes for tests: temp
// configs, an open store, an in-memory blob store, and counting capability
// fakes.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"clipdigest/internal/config"
	"clipdigest/internal/tasks"
)

// NewConfig returns a validated config rooted in temp directories.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Whisper.ModelDir = filepath.Join(dir, "models")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a task store backed by a temp database.
func MustOpenStore(t *testing.T) *tasks.Store {
	t.Helper()
	store, err := tasks.Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
