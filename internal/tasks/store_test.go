package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"clipdigest/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "https://www.tiktok.com/@u/video/1", PlatformTikTok)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected non-zero id")
	}
	if created.Status != StatusPending || created.Progress != 0 {
		t.Fatalf("new task = %s/%d, want pending/0", created.Status, created.Progress)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SourceURL != created.SourceURL || got.Platform != PlatformTikTok {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Fatal("new task should have nil completed_at")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetByID(context.Background(), 999)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, err := store.Create(ctx, "https://v.douyin.com/abc", PlatformDouyin)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	task.Status = StatusCompleted
	task.Progress = ProgressComplete
	task.VideoID = "vid123"
	task.VideoKey = "videos/vid123.mp4"
	task.Transcription = "hello world"
	task.CompletedAt = &now
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Fatalf("got %s/%d, want completed/100", got.Status, got.Progress)
	}
	if got.VideoKey != "videos/vid123.mp4" || got.Transcription != "hello world" {
		t.Fatalf("fields did not persist: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at should persist")
	}
}

func TestClaimNextPendingIsFIFO(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _ := store.Create(ctx, "https://www.tiktok.com/1", PlatformTikTok)
	second, _ := store.Create(ctx, "https://www.tiktok.com/2", PlatformTikTok)

	claimed, err := store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed %+v, want task %d", claimed, first.ID)
	}
	if claimed.Status != StatusDownloading {
		t.Fatalf("claimed status = %s, want downloading", claimed.Status)
	}

	claimed, err = store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("second claim = %+v, want task %d", claimed, second.ID)
	}

	claimed, err = store.ClaimNextPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed != nil {
		t.Fatalf("queue should be empty, got %+v", claimed)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)
		if i < 2 {
			task.Status = StatusCompleted
			if err := store.Update(ctx, task); err != nil {
				t.Fatal(err)
			}
		}
	}

	all, total, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(all) != 5 {
		t.Fatalf("total=%d len=%d, want 5/5", total, len(all))
	}

	completed, total, err := store.List(ctx, ListFilter{Statuses: []Status{StatusCompleted}})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(completed) != 2 {
		t.Fatalf("completed total=%d len=%d, want 2/2", total, len(completed))
	}

	page, total, err := store.List(ctx, ListFilter{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 || len(page) != 2 {
		t.Fatalf("paged total=%d len=%d, want 5/2", total, len(page))
	}
}

func TestRetryResetsTerminalTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)
	task.Status = StatusFailed
	task.Progress = 40
	task.ErrorMessage = "download blew up"
	if err := store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	reset, err := store.Retry(ctx, task.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if reset.Status != StatusPending || reset.Progress != 0 || reset.ErrorMessage != "" {
		t.Fatalf("retry left %s/%d/%q, want pending/0/empty", reset.Status, reset.Progress, reset.ErrorMessage)
	}
}

func TestRetryRejectsActiveTask(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)
	task.Status = StatusTranscribing
	if err := store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	_, err := store.Retry(ctx, task.ID)
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stuck, _ := store.Create(ctx, "https://www.tiktok.com/1", PlatformTikTok)
	stuck.Status = StatusExtractingAudio
	if err := store.Update(ctx, stuck); err != nil {
		t.Fatal(err)
	}
	done, _ := store.Create(ctx, "https://www.tiktok.com/2", PlatformTikTok)
	done.Status = StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetStuckProcessing(ctx, 0)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d tasks, want 1", n)
	}

	got, _ := store.GetByID(ctx, stuck.ID)
	if got.Status != StatusPending {
		t.Fatalf("stuck task = %s, want pending", got.Status)
	}
	got, _ = store.GetByID(ctx, done.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("completed task = %s, should be untouched", got.Status)
	}
}

func TestResetStuckHonorsAge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/1", PlatformTikTok)
	task.Status = StatusDownloading
	if err := store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetStuckProcessing(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("fresh task reset %d, want 0", n)
	}
}

func TestAddSummaryAssignsSortOrderAndMirrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)

	for i, content := range []string{"first", "second", "third"} {
		rec := &SummaryRecord{TaskID: task.ID, Name: "Summary", Content: content}
		if err := store.AddSummary(ctx, rec); err != nil {
			t.Fatalf("add summary %d: %v", i, err)
		}
		if rec.SortOrder != i {
			t.Fatalf("sort_order = %d, want %d", rec.SortOrder, i)
		}
	}

	records, err := store.SummariesForTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d summaries, want 3", len(records))
	}
	for i, want := range []string{"first", "second", "third"} {
		if records[i].Content != want {
			t.Fatalf("summary %d = %q, want %q", i, records[i].Content, want)
		}
	}

	got, _ := store.GetByID(ctx, task.ID)
	if got.Summary != "third" {
		t.Fatalf("task summary mirror = %q, want latest", got.Summary)
	}
}

func TestDeleteCascadesSummaries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)
	if err := store.AddSummary(ctx, &SummaryRecord{TaskID: task.ID, Content: "s"}); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	records, err := store.SummariesForTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("summaries survived delete: %d", len(records))
	}
	if err := store.Delete(ctx, task.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second delete should be NotFound, got %v", err)
	}
}

func TestFindCompletedByVideoID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	task, _ := store.Create(ctx, "https://www.tiktok.com/x", PlatformTikTok)
	task.VideoID = "vid42"
	task.Status = StatusCompleted
	if err := store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindCompletedByVideoID(ctx, "vid42")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != task.ID {
		t.Fatalf("got %+v, want task %d", got, task.ID)
	}

	got, err = store.FindCompletedByVideoID(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("unknown video id should return nil, got %+v", got)
	}
}

func TestActiveAndCountActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	queued, _ := store.Create(ctx, "https://www.tiktok.com/1", PlatformTikTok)
	running, _ := store.Create(ctx, "https://www.tiktok.com/2", PlatformTikTok)
	running.Status = StatusTranscribing
	if err := store.Update(ctx, running); err != nil {
		t.Fatal(err)
	}
	done, _ := store.Create(ctx, "https://www.tiktok.com/3", PlatformTikTok)
	done.Status = StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatal(err)
	}

	active, err := store.Active(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d tasks, want 2", len(active))
	}
	// Queue order: oldest first.
	if active[0].ID != queued.ID || active[1].ID != running.ID {
		t.Fatalf("active order = %d, %d", active[0].ID, active[1].ID)
	}

	count, err := store.CountActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count active = %d, want 1 (only processing statuses)", count)
	}
}
