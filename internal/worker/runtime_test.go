package worker

import (
	"context"
	"errors"
	"testing"
	"time"

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
)

type testEnv struct {
	runtime     *Runtime
	store       *tasks.Store
	transcriber *testsupport.FakeTranscriber
	summarizer  *testsupport.FakeSummarizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := testsupport.MustOpenStore(t)
	blobs := testsupport.NewMemoryBlobStore()
	scratch := t.TempDir()

	cpuPool := dispatch.NewCPUPool(1, nil)
	t.Cleanup(cpuPool.Close)
	ioPool := dispatch.NewIOPool(4, 30*time.Second)

	env := &testEnv{
		store:       store,
		transcriber: &testsupport.FakeTranscriber{Text: "words"},
		summarizer:  &testsupport.FakeSummarizer{Summary: "sum"},
	}
	pipe := pipeline.New(store,
		download.NewHandler(&testsupport.FakeResolver{VideoID: "vid1"}, blobs, ioPool, scratch, nil),
		extract.NewHandler(blobs, &testsupport.FakeExtractor{}, ioPool, scratch, nil),
		transcribe.NewHandler(blobs, env.transcriber, cpuPool, scratch, nil),
		summarize.NewHandler(blobs, env.summarizer, ioPool, store, nil),
		nil)

	env.runtime = New(store, pipe, config.Workflow{
		PollInterval:       1,
		ErrorRetryInterval: 1,
		MaxConcurrentTasks: 2,
		StuckTaskTimeout:   86400,
	}, nil)
	return env
}

func waitForStatus(t *testing.T, store *tasks.Store, id int64, want tasks.Status) *tasks.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	task, _ := store.GetByID(context.Background(), id)
	t.Fatalf("task %d never reached %s (now %s)", id, want, task.Status)
	return nil
}

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	env := newTestEnv(t)
	defer env.runtime.Stop()

	task, err := env.store.Create(context.Background(), "https://www.tiktok.com/x", tasks.PlatformTikTok)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.runtime.Submit(context.Background(), task.ID, Options{Entry: pipeline.EntryFull}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, env.store, task.ID, tasks.StatusCompleted)
}

func TestSubmitConflictsWhileExecuting(t *testing.T) {
	env := newTestEnv(t)
	defer env.runtime.Stop()

	// Hold the pipeline inside transcription so the task stays active.
	env.transcriber.Block = make(chan struct{})

	task, err := env.store.Create(context.Background(), "https://www.tiktok.com/x", tasks.PlatformTikTok)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.runtime.Submit(context.Background(), task.ID, Options{}); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, env.store, task.ID, tasks.StatusTranscribing)

	err = env.runtime.Submit(context.Background(), task.ID, Options{})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}

	close(env.transcriber.Block)
	waitForStatus(t, env.store, task.ID, tasks.StatusCompleted)
}

func TestSubmitAcceptedAfterTermination(t *testing.T) {
	env := newTestEnv(t)
	defer env.runtime.Stop()

	task, _ := env.store.Create(context.Background(), "https://www.tiktok.com/x", tasks.PlatformTikTok)
	if err := env.runtime.Submit(context.Background(), task.ID, Options{}); err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, env.store, task.ID, tasks.StatusCompleted)

	// Resummarize the finished task; no conflict expected now.
	if err := env.runtime.Submit(context.Background(), task.ID, Options{
		Entry: pipeline.EntryResummarize,
	}); err != nil {
		t.Fatalf("submit after completion: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		records, err := env.store.SummariesForTask(context.Background(), task.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(records) == 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("second summary never appeared")
}

func TestSubmitUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	defer env.runtime.Stop()

	err := env.runtime.Submit(context.Background(), 12345, Options{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPollLoopPicksUpPendingTasks(t *testing.T) {
	env := newTestEnv(t)

	task, _ := env.store.Create(context.Background(), "https://www.tiktok.com/x", tasks.PlatformTikTok)

	if err := env.runtime.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer env.runtime.Stop()

	waitForStatus(t, env.store, task.ID, tasks.StatusCompleted)
}

func TestStartResetsStrandedTasks(t *testing.T) {
	env := newTestEnv(t)

	task, _ := env.store.Create(context.Background(), "https://www.tiktok.com/x", tasks.PlatformTikTok)
	task.Status = tasks.StatusTranscribing
	task.Progress = 60
	if err := env.store.Update(context.Background(), task); err != nil {
		t.Fatal(err)
	}

	if err := env.runtime.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer env.runtime.Stop()

	// The stranded task goes back to pending and the poll loop finishes it.
	waitForStatus(t, env.store, task.ID, tasks.StatusCompleted)
}
