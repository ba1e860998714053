package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Blob contains configuration for the S3-compatible artifact store.
type Blob struct {
	Endpoint         string `toml:"endpoint"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	Bucket           string `toml:"bucket"`
	Secure           bool   `toml:"secure"`
	SignedURLSeconds int    `toml:"signed_url_seconds"`
}

// Source contains configuration for the video source resolver.
type Source struct {
	YTDLPBinary    string `toml:"ytdlp_binary"`
	CookiesPath    string `toml:"cookies_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxBatchItems  int    `toml:"max_batch_items"`
}

// Audio contains configuration for audio extraction.
type Audio struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Whisper contains configuration for speech-to-text inference.
type Whisper struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	ModelDir       string `toml:"model_dir"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the summarization model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains daemon timing, pool sizing, and reclaim intervals.
type Workflow struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxConcurrentTasks int `toml:"max_concurrent_tasks"`
	StuckTaskTimeout   int `toml:"stuck_task_timeout"`
	CPUWorkers         int `toml:"cpu_workers"`
	IOWorkers          int `toml:"io_workers"`
	IOTimeout          int `toml:"io_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for clipdigest.
//
// Configuration sections by subsystem:
//   - Paths: scratch/log directories and the API bind address
//   - Blob: S3-compatible artifact store connection
//   - Source: yt-dlp resolver settings
//   - Audio: ffmpeg extraction settings
//   - Whisper: speech-to-text model settings
//   - LLM: summarization model connection
//   - Workflow: polling intervals, pool sizes, stuck-task reclaim
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Blob     Blob     `toml:"blob"`
	Source   Source   `toml:"source"`
	Audio    Audio    `toml:"audio"`
	Whisper  Whisper  `toml:"whisper"`
	LLM      LLM      `toml:"llm"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipdigest/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and secrets overlaid from the environment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.overlayEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// overlayEnv fills credential fields from the environment so secrets can stay
// out of the config file. A .env file next to the working directory is honored
// when present.
func (c *Config) overlayEnv() {
	_ = godotenv.Load()

	if v := strings.TrimSpace(os.Getenv("CLIPDIGEST_S3_ENDPOINT")); v != "" {
		c.Blob.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPDIGEST_S3_ACCESS_KEY")); v != "" {
		c.Blob.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPDIGEST_S3_SECRET_KEY")); v != "" {
		c.Blob.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("CLIPDIGEST_LLM_API_KEY")); v != "" {
		c.LLM.APIKey = v
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipdigest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ScratchDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Whisper.ModelDir, err = expandPath(c.Whisper.ModelDir); err != nil {
		return fmt.Errorf("whisper.model_dir: %w", err)
	}
	if c.Source.CookiesPath != "" {
		if c.Source.CookiesPath, err = expandPath(c.Source.CookiesPath); err != nil {
			return fmt.Errorf("source.cookies_path: %w", err)
		}
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
