// Package download resolves a task's source URL and lands the video in the
// artifact store.
package download

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"clipdigest/internal/blobstore"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
	"clipdigest/internal/source"
	"clipdigest/internal/tasks"
)

type Handler struct {
	resolver   source.Resolver
	blobs      blobstore.Store
	ioPool     *dispatch.IOPool
	scratchDir string
	logger     *slog.Logger
}

func NewHandler(resolver source.Resolver, blobs blobstore.Store, ioPool *dispatch.IOPool, scratchDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		resolver:   resolver,
		blobs:      blobs,
		ioPool:     ioPool,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

func (h *Handler) Name() string { return "download" }

func (h *Handler) Prepare(_ context.Context, task *tasks.Task) error {
	if task.SourceURL == "" {
		return services.Wrap(services.ErrValidation, h.Name(), "prepare",
			"task has no source url", nil)
	}
	return nil
}

func (h *Handler) HealthCheck(_ context.Context) error {
	type checker interface{ HealthCheck() error }
	if c, ok := h.resolver.(checker); ok {
		return c.HealthCheck()
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, task *tasks.Task) error {
	force := services.ForceFromContext(ctx)

	// Resolution is cheap and pins the video id; once set it never changes.
	var info *source.VideoInfo
	err := h.ioPool.Run(ctx, func(ctx context.Context) error {
		var err error
		info, err = h.resolver.Resolve(ctx, task.SourceURL)
		return err
	})
	if err != nil {
		return err
	}
	if task.VideoID == "" {
		task.VideoID = info.ID
		task.Platform = info.Platform
	}

	key := blobstore.VideoKey(task.VideoID)
	if !force {
		exists, err := h.blobs.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			h.logger.Info("video already stored, skipping download",
				logging.String(logging.FieldVideoID, task.VideoID))
			task.VideoKey = key
			return nil
		}
	} else {
		h.purgeScratch(task.VideoID)
	}

	var localPath string
	err = h.ioPool.Run(ctx, func(ctx context.Context) error {
		var err error
		localPath, _, err = h.resolver.Download(ctx, task.SourceURL, h.scratchDir)
		return err
	})
	if err != nil {
		return err
	}

	if err := h.blobs.PutFile(ctx, key, localPath, "video/mp4"); err != nil {
		return err
	}
	task.VideoKey = key

	h.logger.Info("video downloaded",
		logging.String(logging.FieldVideoID, task.VideoID),
		logging.String("key", key))
	return nil
}

// purgeScratch removes stale local files for the video so a forced run
// cannot pick up a previous partial download.
func (h *Handler) purgeScratch(videoID string) {
	matches, err := filepath.Glob(filepath.Join(h.scratchDir, videoID+".*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			h.logger.Warn("could not remove stale scratch file",
				logging.String("path", path), logging.Error(err))
		}
	}
}
