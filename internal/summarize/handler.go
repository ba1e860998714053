// Package summarize turns a task's transcription into a stored summary. Each
// run appends a summary record; the newest content is mirrored onto the task.
package summarize

import (
	"context"
	"log/slog"

	"clipdigest/internal/blobstore"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/llm"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
	"clipdigest/internal/tasks"
)

type Handler struct {
	blobs  blobstore.Store
	client llm.Client
	ioPool *dispatch.IOPool
	store  *tasks.Store
	logger *slog.Logger
}

func NewHandler(blobs blobstore.Store, client llm.Client, ioPool *dispatch.IOPool, store *tasks.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		blobs:  blobs,
		client: client,
		ioPool: ioPool,
		store:  store,
		logger: logger,
	}
}

func (h *Handler) Name() string { return "summarize" }

// Prepare rejects tasks without a transcription before any model call is
// made. The message is what callers and the stored task surface.
func (h *Handler) Prepare(_ context.Context, task *tasks.Task) error {
	if !task.HasTranscription() {
		return services.Wrap(services.ErrInvalidState, h.Name(), "prepare",
			"No transcription available", nil)
	}
	return nil
}

func (h *Handler) HealthCheck(_ context.Context) error { return nil }

func (h *Handler) Execute(ctx context.Context, task *tasks.Task) error {
	if err := h.Prepare(ctx, task); err != nil {
		return err
	}

	var summary string
	err := h.ioPool.Run(ctx, func(ctx context.Context) error {
		var err error
		summary, err = h.client.Summarize(ctx, task.Transcription, services.CustomPromptFromContext(ctx))
		return err
	})
	if err != nil {
		return err
	}

	record := &tasks.SummaryRecord{
		TaskID:       task.ID,
		Content:      summary,
		CustomPrompt: services.CustomPromptFromContext(ctx),
	}
	if err := h.store.AddSummary(ctx, record); err != nil {
		return err
	}

	key := blobstore.SummaryKey(task.VideoID)
	if err := h.blobs.PutBytes(ctx, key, []byte(summary), "text/plain; charset=utf-8"); err != nil {
		return err
	}
	task.Summary = summary
	task.SummaryKey = key

	h.logger.Info("summary generated",
		logging.String(logging.FieldVideoID, task.VideoID),
		logging.Int("sort_order", record.SortOrder))
	return nil
}
