// Package audio extracts speech-ready audio tracks from video files using
// ffmpeg.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"clipdigest/internal/config"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// Extractor is the capability port for audio extraction.
type Extractor interface {
	// Extract writes a mono 16kHz PCM WAV of videoPath's audio track to
	// audioPath.
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// FFmpeg implements Extractor with an ffmpeg subprocess.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewFFmpeg(cfg config.Audio, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{
		binary:  cfg.FFmpegBinary,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// HealthCheck verifies the ffmpeg binary is reachable on PATH.
func (f *FFmpeg) HealthCheck() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "health",
			fmt.Sprintf("ffmpeg binary %q not found", f.binary), err)
	}
	return nil
}

// extractArgs builds the ffmpeg invocation: strip video, signed 16-bit PCM,
// 16kHz mono, overwrite any existing output. The format matches what speech
// models expect.
func extractArgs(videoPath, audioPath string) []string {
	return []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		audioPath,
	}
}

func (f *FFmpeg) Extract(ctx context.Context, videoPath, audioPath string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.binary, extractArgs(videoPath, audioPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A killed ffmpeg can leave a truncated WAV behind; never let it
		// look like a finished artifact.
		os.Remove(audioPath)

		if ctx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, "audio", "extract",
				"ffmpeg timed out", ctx.Err())
		}
		return services.Wrap(services.ErrExtraction, "audio", "extract",
			fmt.Sprintf("ffmpeg: %s", lastLine(stderr.String())), err)
	}

	info, err := os.Stat(audioPath)
	if err != nil || info.Size() == 0 {
		os.Remove(audioPath)
		return services.Wrap(services.ErrExtraction, "audio", "extract",
			"ffmpeg produced no output", err)
	}

	f.logger.Debug("audio extracted",
		logging.String("path", audioPath),
		logging.Int64("bytes", info.Size()))
	return nil
}

// ffmpeg writes diagnostics across many lines; the last non-empty one is what
// explains a failure.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "unknown error"
}
