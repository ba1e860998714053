package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipdigest/internal/config"
	"clipdigest/internal/logging"
	"clipdigest/internal/services"
)

// YTDLP resolves and downloads media by shelling out to yt-dlp.
type YTDLP struct {
	binary      string
	cookiesPath string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewYTDLP builds a resolver from config. The binary is not checked here;
// call HealthCheck before relying on it.
func NewYTDLP(cfg config.Source, logger *slog.Logger) *YTDLP {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &YTDLP{
		binary:      cfg.YTDLPBinary,
		cookiesPath: cfg.CookiesPath,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:      logger,
	}
}

// HealthCheck verifies the yt-dlp binary is reachable on PATH.
func (y *YTDLP) HealthCheck() error {
	if _, err := exec.LookPath(y.binary); err != nil {
		return services.Wrap(services.ErrExternalTool, "source", "health",
			fmt.Sprintf("yt-dlp binary %q not found", y.binary), err)
	}
	return nil
}

type ytdlpJSON struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	WebpageURL string  `json:"webpage_url"`
	Duration   float64 `json:"duration"`
	Entries    []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"entries"`
}

func (y *YTDLP) Resolve(ctx context.Context, rawURL string) (*VideoInfo, error) {
	out, err := y.run(ctx, "-J", "--no-download", "--no-playlist", rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrResolution, "source", "resolve",
			fmt.Sprintf("resolve %s", rawURL), err)
	}

	var payload ytdlpJSON
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, services.Wrap(services.ErrResolution, "source", "resolve",
			"parse yt-dlp metadata", err)
	}
	if payload.ID == "" {
		return nil, services.Wrap(services.ErrResolution, "source", "resolve",
			"yt-dlp returned no video id", nil)
	}

	return &VideoInfo{
		ID:       payload.ID,
		Title:    payload.Title,
		Uploader: payload.Uploader,
		Platform: ClassifyPlatform(rawURL),
		PageURL:  payload.WebpageURL,
		Duration: payload.Duration,
	}, nil
}

func (y *YTDLP) Download(ctx context.Context, rawURL, destDir string) (string, *VideoInfo, error) {
	info, err := y.Resolve(ctx, rawURL)
	if err != nil {
		return "", nil, err
	}

	template := filepath.Join(destDir, "%(id)s.%(ext)s")
	_, err = y.run(ctx,
		"--no-playlist",
		"--no-progress",
		"-f", "mp4/bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", template,
		rawURL,
	)
	if err != nil {
		return "", nil, services.Wrap(services.ErrResolution, "source", "download",
			fmt.Sprintf("download %s", rawURL), err)
	}

	matches, err := filepath.Glob(filepath.Join(destDir, info.ID+".*"))
	if err != nil || len(matches) == 0 {
		return "", nil, services.Wrap(services.ErrResolution, "source", "download",
			fmt.Sprintf("downloaded file for video %s not found", info.ID), err)
	}
	y.logger.Debug("video downloaded",
		logging.String(logging.FieldVideoID, info.ID),
		logging.String("path", matches[0]))
	return matches[0], info, nil
}

func (y *YTDLP) ExpandCollection(ctx context.Context, rawURL string, max int) ([]string, error) {
	out, err := y.run(ctx, "--flat-playlist", "-J", rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrResolution, "source", "expand",
			fmt.Sprintf("expand %s", rawURL), err)
	}

	var payload ytdlpJSON
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, services.Wrap(services.ErrResolution, "source", "expand",
			"parse yt-dlp playlist metadata", err)
	}
	if len(payload.Entries) == 0 {
		return nil, services.Wrap(services.ErrResolution, "source", "expand",
			"collection contains no videos", nil)
	}

	urls := make([]string, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		if max > 0 && len(urls) >= max {
			break
		}
		if entry.URL != "" {
			urls = append(urls, entry.URL)
		}
	}
	return urls, nil
}

func (y *YTDLP) run(ctx context.Context, args ...string) ([]byte, error) {
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	if y.cookiesPath != "" {
		args = append([]string{"--cookies", y.cookiesPath}, args...)
	}

	cmd := exec.CommandContext(ctx, y.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "source", "run",
				"yt-dlp timed out", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("yt-dlp: %s", firstLine(detail))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
