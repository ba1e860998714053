package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipdigest/internal/blobstore"
	"clipdigest/internal/config"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/download"
	"clipdigest/internal/extract"
	"clipdigest/internal/pipeline"
	"clipdigest/internal/services"
	"clipdigest/internal/summarize"
	"clipdigest/internal/tasks"
	"clipdigest/internal/testsupport"
	"clipdigest/internal/transcribe"
	"clipdigest/internal/worker"
)

func newRuntime(t *testing.T, store *tasks.Store, pipe *pipeline.Pipeline) *worker.Runtime {
	t.Helper()
	rt := worker.New(store, pipe, config.Workflow{
		PollInterval:       1,
		ErrorRetryInterval: 1,
		MaxConcurrentTasks: 2,
		StuckTaskTimeout:   86400,
	}, nil)
	t.Cleanup(rt.Stop)
	return rt
}

type env struct {
	service    *TaskService
	store      *tasks.Store
	blobs      *testsupport.MemoryBlobStore
	resolver   *testsupport.FakeResolver
	summarizer *testsupport.FakeSummarizer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := testsupport.MustOpenStore(t)
	blobs := testsupport.NewMemoryBlobStore()
	scratch := t.TempDir()

	cpuPool := dispatch.NewCPUPool(1, nil)
	t.Cleanup(cpuPool.Close)
	ioPool := dispatch.NewIOPool(4, 30*time.Second)

	resolver := &testsupport.FakeResolver{VideoID: "vid1"}
	summarizer := &testsupport.FakeSummarizer{Summary: "sum"}
	pipe := pipeline.New(store,
		download.NewHandler(resolver, blobs, ioPool, scratch, nil),
		extract.NewHandler(blobs, &testsupport.FakeExtractor{}, ioPool, scratch, nil),
		transcribe.NewHandler(blobs, &testsupport.FakeTranscriber{Text: "words"}, cpuPool, scratch, nil),
		summarize.NewHandler(blobs, summarizer, ioPool, store, nil),
		nil)

	runtime := newRuntime(t, store, pipe)
	return &env{
		service:    NewTaskService(store, blobs, resolver, runtime, time.Hour, 100, nil),
		store:      store,
		blobs:      blobs,
		resolver:   resolver,
		summarizer: summarizer,
	}
}

func TestCreateValidatesURL(t *testing.T) {
	e := newEnv(t)
	for _, bad := range []string{"", "   ", "not a url", "/relative/path"} {
		if _, err := e.service.Create(context.Background(), bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Create(%q) err = %v, want ErrValidation", bad, err)
		}
	}
}

func TestCreateEnqueuesPendingTask(t *testing.T) {
	e := newEnv(t)
	resp, err := e.service.Create(context.Background(), "https://www.tiktok.com/@u/video/9")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Status != string(tasks.StatusPending) || resp.Progress != 0 {
		t.Fatalf("response = %s/%d", resp.Status, resp.Progress)
	}
	if resp.Platform != string(tasks.PlatformTikTok) {
		t.Fatalf("platform = %q", resp.Platform)
	}
}

func TestCreateBatchExpandsCollection(t *testing.T) {
	e := newEnv(t)
	e.resolver.ExpandURLs = []string{
		"https://www.tiktok.com/@a/video/1",
		"https://www.tiktok.com/@a/video/2",
		"https://v.douyin.com/x3",
	}

	resp, err := e.service.CreateBatch(context.Background(), "https://www.tiktok.com/@a", 0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(resp.Created) != 3 || len(resp.Failed) != 0 {
		t.Fatalf("created=%d failed=%d", len(resp.Created), len(resp.Failed))
	}
	if resp.Created[2].Platform != string(tasks.PlatformDouyin) {
		t.Fatalf("third platform = %q", resp.Created[2].Platform)
	}
}

func TestCreateBatchHonorsCount(t *testing.T) {
	e := newEnv(t)
	e.resolver.ExpandURLs = []string{
		"https://www.tiktok.com/@a/video/1",
		"https://www.tiktok.com/@a/video/2",
		"https://www.tiktok.com/@a/video/3",
	}
	resp, err := e.service.CreateBatch(context.Background(), "https://www.tiktok.com/@a", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Created) != 2 {
		t.Fatalf("created %d, want 2", len(resp.Created))
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	e := newEnv(t)
	if _, err := e.service.List(context.Background(), []string{"exploded"}, 10, 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestCurrentAndHistorySplitByTerminality(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	done, _ := e.store.Create(ctx, "https://www.tiktok.com/2", tasks.PlatformTikTok)
	done.Status = tasks.StatusCompleted
	if err := e.store.Update(ctx, done); err != nil {
		t.Fatal(err)
	}

	current, err := e.service.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if current.Total != 1 || current.Tasks[0].ID != pending.ID {
		t.Fatalf("current = %+v", current)
	}

	history, err := e.service.History(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if history.Total != 1 || history.Tasks[0].ID != done.ID {
		t.Fatalf("history = %+v", history)
	}
}

func TestDeletePurgesArtifacts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	task.VideoID = "vid1"
	task.VideoKey = blobstore.VideoKey("vid1")
	task.TranscriptKey = blobstore.TranscriptKey("vid1")
	if err := e.store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}
	e.blobs.Seed(task.VideoKey, []byte("video"))
	e.blobs.Seed(task.TranscriptKey, []byte("text"))

	if err := e.service.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.store.GetByID(ctx, task.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatal("task row should be gone")
	}
	if e.blobs.Content(task.VideoKey) != nil || e.blobs.Content(task.TranscriptKey) != nil {
		t.Fatal("artifacts should be purged")
	}
}

func TestDeleteBatchContinuesPastFailures(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	second, _ := e.store.Create(ctx, "https://www.tiktok.com/2", tasks.PlatformTikTok)

	resp := e.service.DeleteBatch(ctx, []int64{first.ID, 99999, second.ID})
	if len(resp.Deleted) != 2 {
		t.Fatalf("deleted = %v", resp.Deleted)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].TaskID != 99999 {
		t.Fatalf("failed = %+v", resp.Failed)
	}
}

func TestRetryOnlyTerminalTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	if _, err := e.service.Retry(ctx, task.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("retry of pending task: %v", err)
	}

	task.Status = tasks.StatusFailed
	task.ErrorMessage = "boom"
	task.Progress = 60
	if err := e.store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	resp, err := e.service.Retry(ctx, task.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resp.Status != string(tasks.StatusPending) || resp.Progress != 0 || resp.ErrorMessage != "" {
		t.Fatalf("retry response = %+v", resp)
	}
}

func TestResummarizeGuards(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	if _, err := e.service.Resummarize(ctx, task.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("pending task: %v", err)
	}

	task.Status = tasks.StatusCompleted
	if err := e.store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}
	if _, err := e.service.Resummarize(ctx, task.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("completed without transcription: %v", err)
	}
}

func TestResummarizeSchedulesRun(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	task.Status = tasks.StatusCompleted
	task.VideoID = "vid1"
	task.Transcription = "words"
	if err := e.store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}

	if _, err := e.service.Resummarize(ctx, task.ID, "bullet points"); err != nil {
		t.Fatalf("resummarize: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		records, err := e.store.SummariesForTask(ctx, task.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) == 1 {
			if records[0].CustomPrompt != "bullet points" {
				t.Fatalf("custom prompt = %q", records[0].CustomPrompt)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("summary never appeared")
}

func TestArtifactURLsSignsExistingKeys(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	task, _ := e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	task.VideoID = "vid1"
	task.VideoKey = blobstore.VideoKey("vid1")
	if err := e.store.Update(ctx, task); err != nil {
		t.Fatal(err)
	}
	e.blobs.Seed(task.VideoKey, []byte("video"))

	urls, err := e.service.ArtifactURLs(ctx, task.ID)
	if err != nil {
		t.Fatalf("urls: %v", err)
	}
	if urls.VideoURL == "" {
		t.Fatal("video url should be signed")
	}
	if urls.AudioURL != "" || urls.SummaryURL != "" {
		t.Fatalf("absent artifacts should have no urls: %+v", urls)
	}
}

func TestStatusReportsQueueDepth(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.store.Create(ctx, "https://www.tiktok.com/1", tasks.PlatformTikTok)
	e.store.Create(ctx, "https://www.tiktok.com/2", tasks.PlatformTikTok)
	running, _ := e.store.Create(ctx, "https://www.tiktok.com/3", tasks.PlatformTikTok)
	running.Status = tasks.StatusTranscribing
	if err := e.store.Update(ctx, running); err != nil {
		t.Fatal(err)
	}

	status, err := e.service.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Running || status.QueuedTasks != 2 || status.TotalTasks != 3 {
		t.Fatalf("status = %+v", status)
	}
	if status.ProcessingTasks != 1 {
		t.Fatalf("processing = %d, want 1", status.ProcessingTasks)
	}
	if status.TaskSlots != 2 {
		t.Fatalf("slots = %d", status.TaskSlots)
	}
}
