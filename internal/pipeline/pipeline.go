// Package pipeline drives a task through its stages in order, persisting
// status and progress transitions after every step.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"clipdigest/internal/logging"
	"clipdigest/internal/services"
	"clipdigest/internal/stage"
	"clipdigest/internal/tasks"
)

// Entry selects where a run enters the stage sequence.
type Entry int

const (
	// EntryFull runs every stage from download onward. Retries use this
	// entry; cache hits short-circuit the stages whose artifacts survive.
	EntryFull Entry = iota
	// EntryResummarize runs only the summarize stage against the existing
	// transcription.
	EntryResummarize
)

type stageSpec struct {
	handler    stage.Handler
	processing tasks.Status
	progress   int
}

// Pipeline owns the ordered stage table and the persistence protocol around
// it.
type Pipeline struct {
	store  *tasks.Store
	stages []stageSpec
	logger *slog.Logger
}

func New(store *tasks.Store, download, extract, transcribe, summarize stage.Handler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		store: store,
		stages: []stageSpec{
			{handler: download, processing: tasks.StatusDownloading, progress: tasks.ProgressDownloaded},
			{handler: extract, processing: tasks.StatusExtractingAudio, progress: tasks.ProgressExtracted},
			{handler: transcribe, processing: tasks.StatusTranscribing, progress: tasks.ProgressTranscribed},
			{handler: summarize, processing: tasks.StatusSummarizing, progress: tasks.ProgressComplete},
		},
		logger: logger,
	}
}

// Process runs the task from entry to completion. Stage failures are
// persisted onto the task and returned; the caller decides whether to log or
// surface them, never to re-persist.
func (p *Pipeline) Process(ctx context.Context, task *tasks.Task, entry Entry) error {
	ctx = services.WithTaskID(ctx, task.ID)

	start := 0
	if entry == EntryResummarize {
		start = len(p.stages) - 1
	}

	for i := start; i < len(p.stages); i++ {
		spec := p.stages[i]
		stageCtx := services.WithStage(ctx, spec.handler.Name())
		logger := p.logger.With(
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.String(logging.FieldStage, spec.handler.Name()))

		if err := spec.handler.Prepare(stageCtx, task); err != nil {
			return p.fail(ctx, task, logger, err)
		}

		task.Status = spec.processing
		if err := p.store.Update(ctx, task); err != nil {
			return p.fail(ctx, task, logger, err)
		}

		logger.Info("stage started")
		if err := spec.handler.Execute(stageCtx, task); err != nil {
			return p.fail(ctx, task, logger, err)
		}

		// Progress only moves forward within a run.
		if spec.progress > task.Progress {
			task.Progress = spec.progress
		}
		if err := p.store.Update(ctx, task); err != nil {
			return p.fail(ctx, task, logger, err)
		}
		logger.Info("stage finished", logging.Int("progress", task.Progress))

		// The download stage pins the video id; a completed task for the
		// same video already holds everything the remaining stages would
		// produce.
		if i == start && entry == EntryFull && !services.ForceFromContext(ctx) {
			adopted, err := p.adoptCompletedDuplicate(ctx, task)
			if err != nil {
				return p.fail(ctx, task, logger, err)
			}
			if adopted {
				logger.Info("duplicate video, reused completed task data",
					logging.String(logging.FieldVideoID, task.VideoID))
				return nil
			}
		}
	}

	now := time.Now().UTC()
	task.Status = tasks.StatusCompleted
	task.Progress = tasks.ProgressComplete
	task.ErrorMessage = ""
	task.CompletedAt = &now
	if err := p.store.Update(ctx, task); err != nil {
		return err
	}
	p.logger.Info("task completed", logging.Int64(logging.FieldTaskID, task.ID))
	return nil
}

// adoptCompletedDuplicate copies the artifacts, transcription, and summary
// of an earlier completed task for the same video onto this one and marks it
// completed, skipping the remaining stages.
func (p *Pipeline) adoptCompletedDuplicate(ctx context.Context, task *tasks.Task) (bool, error) {
	prior, err := p.store.FindCompletedByVideoID(ctx, task.VideoID)
	if err != nil {
		return false, err
	}
	if prior == nil || prior.ID == task.ID || !prior.HasTranscription() || prior.Summary == "" {
		return false, nil
	}

	task.VideoKey = prior.VideoKey
	task.AudioKey = prior.AudioKey
	task.TranscriptKey = prior.TranscriptKey
	task.SummaryKey = prior.SummaryKey
	task.Transcription = prior.Transcription
	task.Summary = prior.Summary

	now := time.Now().UTC()
	task.Status = tasks.StatusCompleted
	task.Progress = tasks.ProgressComplete
	task.ErrorMessage = ""
	task.CompletedAt = &now
	if err := p.store.Update(ctx, task); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) fail(ctx context.Context, task *tasks.Task, logger *slog.Logger, cause error) error {
	detail := services.Details(cause)
	task.Status = tasks.StatusFailed
	task.ErrorMessage = detail.Message
	if err := p.store.Update(ctx, task); err != nil {
		logger.Error("could not persist failure", logging.Error(err))
	}
	logger.Error("stage failed", logging.Error(cause))
	return cause
}

// HealthCheck asks every stage whether its external tools are usable.
func (p *Pipeline) HealthCheck(ctx context.Context) error {
	for _, spec := range p.stages {
		if err := spec.handler.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}
