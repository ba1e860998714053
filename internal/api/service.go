// Package api is the service facade behind the daemon's HTTP surface. It
// validates requests, talks to the store and blob store, and hands long
// running work to the worker runtime.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"clipdigest/internal/blobstore"
	"clipdigest/internal/logging"
	"clipdigest/internal/pipeline"
	"clipdigest/internal/services"
	"clipdigest/internal/source"
	"clipdigest/internal/tasks"
	"clipdigest/internal/worker"
)

// TaskService exposes every task operation the API serves.
type TaskService struct {
	store        *tasks.Store
	blobs        blobstore.Store
	resolver     source.Resolver
	runtime      *worker.Runtime
	signedURLTTL time.Duration
	maxBatch     int
	logger       *slog.Logger
}

func NewTaskService(store *tasks.Store, blobs blobstore.Store, resolver source.Resolver,
	runtime *worker.Runtime, signedURLTTL time.Duration, maxBatch int, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TaskService{
		store:        store,
		blobs:        blobs,
		resolver:     resolver,
		runtime:      runtime,
		signedURLTTL: signedURLTTL,
		maxBatch:     maxBatch,
		logger:       logger,
	}
}

func validateSourceURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return services.Wrap(services.ErrValidation, "api", "create", "url is required", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return services.Wrap(services.ErrValidation, "api", "create",
			fmt.Sprintf("%q is not a valid url", raw), err)
	}
	return nil
}

// Create enqueues a single video URL. The background poll loop picks the
// task up.
func (s *TaskService) Create(ctx context.Context, rawURL string) (*TaskResponse, error) {
	if err := validateSourceURL(rawURL); err != nil {
		return nil, err
	}
	task, err := s.store.Create(ctx, strings.TrimSpace(rawURL), source.ClassifyPlatform(rawURL))
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String("url", task.SourceURL))
	resp := toTaskResponse(task)
	return &resp, nil
}

// CreateBatch expands a collection or author URL and enqueues each item,
// reporting per-item outcomes.
func (s *TaskService) CreateBatch(ctx context.Context, rawURL string, count int) (*BatchCreateResponse, error) {
	if err := validateSourceURL(rawURL); err != nil {
		return nil, err
	}
	if count <= 0 || count > s.maxBatch {
		count = s.maxBatch
	}

	urls, err := s.resolver.ExpandCollection(ctx, strings.TrimSpace(rawURL), count)
	if err != nil {
		return nil, err
	}

	resp := &BatchCreateResponse{}
	for _, itemURL := range urls {
		task, err := s.store.Create(ctx, itemURL, source.ClassifyPlatform(itemURL))
		if err != nil {
			resp.Failed = append(resp.Failed, BatchFailure{
				SourceURL: itemURL,
				Error:     services.Details(err).Message,
			})
			continue
		}
		resp.Created = append(resp.Created, toTaskResponse(task))
	}
	s.logger.Info("batch created",
		logging.Int("created", len(resp.Created)),
		logging.Int("failed", len(resp.Failed)))
	return resp, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, id int64) (*TaskResponse, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toTaskResponse(task)
	return &resp, nil
}

// Summaries returns a task's summaries in insertion order.
func (s *TaskService) Summaries(ctx context.Context, id int64) ([]SummaryResponse, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.store.SummariesForTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSummaryResponses(records), nil
}

// List returns tasks newest first, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, statuses []string, limit, offset int) (*TaskListResponse, error) {
	filter := tasks.ListFilter{Offset: offset, Limit: limit}
	for _, raw := range statuses {
		status := tasks.Status(strings.ToLower(strings.TrimSpace(raw)))
		if !status.Valid() {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown status %q", raw), nil)
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	list, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TaskListResponse{
		Tasks:  toTaskResponses(list),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// Current returns every task that has not reached a terminal state, in queue
// order.
func (s *TaskService) Current(ctx context.Context) (*TaskListResponse, error) {
	list, err := s.store.Active(ctx)
	if err != nil {
		return nil, err
	}
	return &TaskListResponse{Tasks: toTaskResponses(list), Total: len(list)}, nil
}

// History returns finished tasks newest first.
func (s *TaskService) History(ctx context.Context, limit, offset int) (*TaskListResponse, error) {
	filter := tasks.ListFilter{
		Statuses:       []tasks.Status{tasks.StatusCompleted, tasks.StatusFailed},
		Limit:          limit,
		Offset:         offset,
		OrderByUpdated: true,
	}
	list, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TaskListResponse{Tasks: toTaskResponses(list), Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes a task, its summaries, and its stored artifacts. Blob
// removal is best effort; the task row always goes.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	for _, key := range []string{task.VideoKey, task.AudioKey, task.TranscriptKey, task.SummaryKey} {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("could not remove artifact",
				logging.Int64(logging.FieldTaskID, id),
				logging.String("key", key),
				logging.Error(err))
		}
	}
	s.logger.Info("task deleted", logging.Int64(logging.FieldTaskID, id))
	return nil
}

// DeleteBatch deletes several tasks, continuing past per-item failures.
func (s *TaskService) DeleteBatch(ctx context.Context, ids []int64) *BatchDeleteResponse {
	resp := &BatchDeleteResponse{}
	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			resp.Failed = append(resp.Failed, BatchFailure{
				TaskID: id,
				Error:  services.Details(err).Message,
			})
			continue
		}
		resp.Deleted = append(resp.Deleted, id)
	}
	return resp
}

// Retry resets a finished task to pending so the pipeline runs it again.
func (s *TaskService) Retry(ctx context.Context, id int64) (*TaskResponse, error) {
	task, err := s.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task queued for retry", logging.Int64(logging.FieldTaskID, id))
	resp := toTaskResponse(task)
	return &resp, nil
}

// Resummarize schedules a fresh summary for a completed task. The task must
// be completed with a non-empty transcription.
func (s *TaskService) Resummarize(ctx context.Context, id int64, customPrompt string) (*TaskResponse, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != tasks.StatusCompleted || !task.HasTranscription() {
		return nil, services.Wrap(services.ErrInvalidState, "api", "resummarize",
			"task must be completed with a transcription to resummarize", nil)
	}

	err = s.runtime.Submit(ctx, id, worker.Options{
		Entry:        pipeline.EntryResummarize,
		Force:        true,
		CustomPrompt: customPrompt,
	})
	if err != nil {
		return nil, err
	}
	resp := toTaskResponse(task)
	return &resp, nil
}

// ArtifactURLs returns freshly signed URLs for whichever artifacts exist.
func (s *TaskService) ArtifactURLs(ctx context.Context, id int64) (*ArtifactURLs, error) {
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	urls := &ArtifactURLs{}
	sign := func(key string, dest *string) error {
		if key == "" {
			return nil
		}
		signed, err := s.blobs.SignedURL(ctx, key, s.signedURLTTL)
		if err != nil {
			return err
		}
		*dest = signed
		return nil
	}
	if err := sign(task.VideoKey, &urls.VideoURL); err != nil {
		return nil, err
	}
	if err := sign(task.AudioKey, &urls.AudioURL); err != nil {
		return nil, err
	}
	if err := sign(task.TranscriptKey, &urls.TranscriptURL); err != nil {
		return nil, err
	}
	if err := sign(task.SummaryKey, &urls.SummaryURL); err != nil {
		return nil, err
	}
	return urls, nil
}

// Status reports daemon load and queue depth.
func (s *TaskService) Status(ctx context.Context) (*StatusResponse, error) {
	stats := s.runtime.Stats()
	_, total, err := s.store.List(ctx, tasks.ListFilter{})
	if err != nil {
		return nil, err
	}
	_, queued, err := s.store.List(ctx, tasks.ListFilter{Statuses: []tasks.Status{tasks.StatusPending}})
	if err != nil {
		return nil, err
	}
	processing, err := s.store.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		Running:         true,
		ActiveTasks:     stats.Active,
		TaskSlots:       stats.Slots,
		QueuedTasks:     queued,
		ProcessingTasks: processing,
		TotalTasks:      total,
	}, nil
}
