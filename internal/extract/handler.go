// Package extract turns a stored video into a speech-ready audio artifact.
package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"clipdigest/internal/audio"
	"clipdigest/internal/blobstore"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
	"clipdigest/internal/tasks"
)

type Handler struct {
	blobs      blobstore.Store
	extractor  audio.Extractor
	ioPool     *dispatch.IOPool
	scratchDir string
	logger     *slog.Logger
}

func NewHandler(blobs blobstore.Store, extractor audio.Extractor, ioPool *dispatch.IOPool, scratchDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		blobs:      blobs,
		extractor:  extractor,
		ioPool:     ioPool,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

func (h *Handler) Name() string { return "extract" }

func (h *Handler) Prepare(_ context.Context, task *tasks.Task) error {
	if task.VideoID == "" || task.VideoKey == "" {
		return services.Wrap(services.ErrInvalidState, h.Name(), "prepare",
			"task has no stored video to extract from", nil)
	}
	return nil
}

func (h *Handler) HealthCheck(_ context.Context) error {
	type checker interface{ HealthCheck() error }
	if c, ok := h.extractor.(checker); ok {
		return c.HealthCheck()
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, task *tasks.Task) error {
	key := blobstore.AudioKey(task.VideoID)
	if !services.ForceFromContext(ctx) {
		exists, err := h.blobs.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			h.logger.Info("audio already stored, skipping extraction",
				logging.String(logging.FieldVideoID, task.VideoID))
			task.AudioKey = key
			return nil
		}
	}

	videoPath, err := h.ensureLocalVideo(ctx, task)
	if err != nil {
		return err
	}

	audioPath := filepath.Join(h.scratchDir, task.VideoID+"_audio.wav")
	err = h.ioPool.Run(ctx, func(ctx context.Context) error {
		return h.extractor.Extract(ctx, videoPath, audioPath)
	})
	if err != nil {
		return err
	}

	if err := h.blobs.PutFile(ctx, key, audioPath, "audio/wav"); err != nil {
		return err
	}
	task.AudioKey = key

	h.logger.Info("audio extracted",
		logging.String(logging.FieldVideoID, task.VideoID),
		logging.String("key", key))
	return nil
}

// ensureLocalVideo returns a local path for the task's video, fetching it
// from the blob store when the scratch copy is gone. This is what lets a
// retried task resume after its scratch directory was cleaned.
func (h *Handler) ensureLocalVideo(ctx context.Context, task *tasks.Task) (string, error) {
	videoPath := filepath.Join(h.scratchDir, task.VideoID+".mp4")
	if _, err := os.Stat(videoPath); err == nil {
		return videoPath, nil
	}

	reader, err := h.blobs.Get(ctx, task.VideoKey)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	file, err := os.Create(videoPath)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, h.Name(), "fetch",
			fmt.Sprintf("create %q", videoPath), err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(videoPath)
		return "", services.Wrap(services.ErrExtraction, h.Name(), "fetch",
			"copy video from blob store", err)
	}
	return videoPath, nil
}
