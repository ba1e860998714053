// Package transcribe produces a transcript of a task's audio artifact.
// Inference is CPU-bound and runs on the dedicated CPU pool so the model a
// worker loaded stays with that worker.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"clipdigest/internal/blobstore"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
	"clipdigest/internal/tasks"
	"clipdigest/internal/whisper"
)

type Handler struct {
	blobs      blobstore.Store
	service    whisper.Service
	cpuPool    *dispatch.CPUPool
	scratchDir string
	logger     *slog.Logger
}

func NewHandler(blobs blobstore.Store, service whisper.Service, cpuPool *dispatch.CPUPool, scratchDir string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		blobs:      blobs,
		service:    service,
		cpuPool:    cpuPool,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

func (h *Handler) Name() string { return "transcribe" }

func (h *Handler) Prepare(_ context.Context, task *tasks.Task) error {
	if task.VideoID == "" || task.AudioKey == "" {
		return services.Wrap(services.ErrInvalidState, h.Name(), "prepare",
			"task has no stored audio to transcribe", nil)
	}
	return nil
}

func (h *Handler) HealthCheck(_ context.Context) error {
	type checker interface{ HealthCheck() error }
	if c, ok := h.service.(checker); ok {
		return c.HealthCheck()
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, task *tasks.Task) error {
	key := blobstore.TranscriptKey(task.VideoID)
	if !services.ForceFromContext(ctx) {
		exists, err := h.blobs.Exists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			text, err := h.readStoredTranscript(ctx, key)
			if err != nil {
				return err
			}
			h.logger.Info("transcript already stored, skipping inference",
				logging.String(logging.FieldVideoID, task.VideoID))
			task.Transcription = text
			task.TranscriptKey = key
			return nil
		}
	}

	audioPath, err := h.ensureLocalAudio(ctx, task)
	if err != nil {
		return err
	}

	var text string
	err = h.cpuPool.Run(ctx, func(ctx context.Context, w *dispatch.Worker) error {
		var err error
		text, err = h.service.Transcribe(ctx, w, audioPath)
		return err
	})
	if err != nil {
		return err
	}
	// Whitespace-only output counts as no speech regardless of which
	// implementation produced it.
	text = strings.TrimSpace(text)

	// An empty transcript is stored too: it records that inference ran and
	// found no speech.
	if err := h.blobs.PutBytes(ctx, key, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return err
	}
	task.Transcription = text
	task.TranscriptKey = key

	h.logger.Info("transcription complete",
		logging.String(logging.FieldVideoID, task.VideoID),
		logging.Int("chars", len(text)))
	return nil
}

func (h *Handler) readStoredTranscript(ctx context.Context, key string) (string, error) {
	reader, err := h.blobs.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, h.Name(), "fetch",
			"read stored transcript", err)
	}
	return string(data), nil
}

func (h *Handler) ensureLocalAudio(ctx context.Context, task *tasks.Task) (string, error) {
	audioPath := filepath.Join(h.scratchDir, task.VideoID+"_audio.wav")
	if _, err := os.Stat(audioPath); err == nil {
		return audioPath, nil
	}

	reader, err := h.blobs.Get(ctx, task.AudioKey)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	file, err := os.Create(audioPath)
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, h.Name(), "fetch",
			fmt.Sprintf("create %q", audioPath), err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(audioPath)
		return "", services.Wrap(services.ErrTranscription, h.Name(), "fetch",
			"copy audio from blob store", err)
	}
	return audioPath, nil
}
