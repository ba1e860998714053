package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Workflow.MaxConcurrentTasks != 3 {
		t.Fatalf("max_concurrent_tasks = %d, want default 3", cfg.Workflow.MaxConcurrentTasks)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
scratch_dir = "` + filepath.Join(dir, "scratch") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[workflow]
max_concurrent_tasks = 7
cpu_workers = 2

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Workflow.MaxConcurrentTasks != 7 {
		t.Fatalf("max_concurrent_tasks = %d, want 7", cfg.Workflow.MaxConcurrentTasks)
	}
	if cfg.Workflow.CPUWorkers != 2 {
		t.Fatalf("cpu_workers = %d, want 2", cfg.Workflow.CPUWorkers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.FFmpegBinary != "ffmpeg" {
		t.Fatalf("ffmpeg_binary = %q, want ffmpeg", cfg.Audio.FFmpegBinary)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[workflow]
max_concurrent_tasks = 0

[logging]
format = "xml"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_concurrent_tasks") {
		t.Fatalf("error should mention max_concurrent_tasks: %v", err)
	}
	if !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("error should mention logging.format: %v", err)
	}
}

func TestEnvOverlaysCredentials(t *testing.T) {
	t.Setenv("CLIPDIGEST_LLM_API_KEY", "sk-test")
	t.Setenv("CLIPDIGEST_S3_ACCESS_KEY", "minio-user")

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("llm api key = %q, want sk-test", cfg.LLM.APIKey)
	}
	if cfg.Blob.AccessKey != "minio-user" {
		t.Fatalf("blob access key = %q, want minio-user", cfg.Blob.AccessKey)
	}
}

func TestExpandPathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	got, err := expandPath("~/clipdigest")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	want := filepath.Join(home, "clipdigest")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	for _, p := range []string{cfg.Paths.ScratchDir, cfg.Paths.LogDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s", p)
		}
	}
}
