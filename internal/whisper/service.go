// Package whisper runs speech-to-text inference over extracted audio. The
// production implementation shells out to the whisper CLI; model references
// are held in the per-worker arena so weights are verified once per worker.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipdigest/internal/config"
	"clipdigest/internal/dispatch"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// Service is the capability port for transcription. An empty result with a
// nil error means the audio contained no recognizable speech.
type Service interface {
	Transcribe(ctx context.Context, w *dispatch.Worker, audioPath string) (string, error)
}

// CLI implements Service with a whisper subprocess.
type CLI struct {
	binary   string
	model    string
	modelDir string
	language string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewCLI(cfg config.Whisper, logger *slog.Logger) *CLI {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CLI{
		binary:   cfg.Binary,
		model:    cfg.Model,
		modelDir: cfg.ModelDir,
		language: cfg.Language,
		timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:   logger,
	}
}

// HealthCheck verifies the whisper binary is reachable on PATH.
func (c *CLI) HealthCheck() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "whisper", "health",
			fmt.Sprintf("whisper binary %q not found", c.binary), err)
	}
	return nil
}

// modelRef is what lives in a worker's arena: a model name whose weight
// directory has been prepared. The CLI downloads weights on first use, so
// preparing is just making sure the cache directory exists.
type modelRef struct {
	name string
	dir  string
}

func (c *CLI) prepareModel() (any, error) {
	if c.modelDir != "" {
		if err := os.MkdirAll(c.modelDir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrTranscription, "whisper", "prepare",
				fmt.Sprintf("create model directory %q", c.modelDir), err)
		}
	}
	return modelRef{name: c.model, dir: c.modelDir}, nil
}

func (c *CLI) Transcribe(ctx context.Context, w *dispatch.Worker, audioPath string) (string, error) {
	handle, err := w.Model(c.model, c.prepareModel)
	if err != nil {
		return "", err
	}
	ref := handle.(modelRef)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	outDir, err := os.MkdirTemp("", "clipdigest-whisper-*")
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "whisper", "transcribe",
			"create output directory", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		audioPath,
		"--model", ref.name,
		"--output_format", "txt",
		"--output_dir", outDir,
		"--fp16", "False",
	}
	if ref.dir != "" {
		args = append(args, "--model_dir", ref.dir)
	}
	if c.language != "" {
		args = append(args, "--language", c.language)
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", services.Wrap(services.ErrTimeout, "whisper", "transcribe",
				"whisper timed out", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", services.Wrap(services.ErrTranscription, "whisper", "transcribe",
			fmt.Sprintf("whisper: %s", detail), err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	text, err := os.ReadFile(filepath.Join(outDir, base+".txt"))
	if err != nil {
		return "", services.Wrap(services.ErrTranscription, "whisper", "transcribe",
			"read transcription output", err)
	}

	// Silence yields an empty transcript, which is a valid result.
	result := strings.TrimSpace(string(text))
	c.logger.Debug("transcription finished",
		logging.String("audio", audioPath),
		logging.Int("chars", len(result)))
	return result, nil
}
