package config

import (
	"fmt"
	"strings"
)

// Validate checks that the configuration is internally consistent and that
// required values are present.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		problems = append(problems, "paths.scratch_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		problems = append(problems, "paths.api_bind must be set")
	}
	if strings.TrimSpace(c.Blob.Endpoint) == "" {
		problems = append(problems, "blob.endpoint must be set")
	}
	if strings.TrimSpace(c.Blob.Bucket) == "" {
		problems = append(problems, "blob.bucket must be set")
	}
	if c.Blob.SignedURLSeconds <= 0 {
		problems = append(problems, "blob.signed_url_seconds must be positive")
	}
	if strings.TrimSpace(c.Source.YTDLPBinary) == "" {
		problems = append(problems, "source.ytdlp_binary must be set")
	}
	if c.Source.TimeoutSeconds <= 0 {
		problems = append(problems, "source.timeout_seconds must be positive")
	}
	if c.Source.MaxBatchItems <= 0 {
		problems = append(problems, "source.max_batch_items must be positive")
	}
	if strings.TrimSpace(c.Audio.FFmpegBinary) == "" {
		problems = append(problems, "audio.ffmpeg_binary must be set")
	}
	if c.Audio.TimeoutSeconds <= 0 {
		problems = append(problems, "audio.timeout_seconds must be positive")
	}
	if strings.TrimSpace(c.Whisper.Binary) == "" {
		problems = append(problems, "whisper.binary must be set")
	}
	if strings.TrimSpace(c.Whisper.Model) == "" {
		problems = append(problems, "whisper.model must be set")
	}
	if c.Whisper.TimeoutSeconds <= 0 {
		problems = append(problems, "whisper.timeout_seconds must be positive")
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		problems = append(problems, "llm.base_url must be set")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		problems = append(problems, "llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		problems = append(problems, "llm.timeout_seconds must be positive")
	}
	if c.Workflow.PollInterval <= 0 {
		problems = append(problems, "workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		problems = append(problems, "workflow.error_retry_interval must be positive")
	}
	if c.Workflow.MaxConcurrentTasks <= 0 {
		problems = append(problems, "workflow.max_concurrent_tasks must be positive")
	}
	if c.Workflow.StuckTaskTimeout <= 0 {
		problems = append(problems, "workflow.stuck_task_timeout must be positive")
	}
	if c.Workflow.CPUWorkers <= 0 {
		problems = append(problems, "workflow.cpu_workers must be positive")
	}
	if c.Workflow.IOWorkers <= 0 {
		problems = append(problems, "workflow.io_workers must be positive")
	}
	if c.Workflow.IOTimeout <= 0 {
		problems = append(problems, "workflow.io_timeout must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (use console or json)", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not supported", c.Logging.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
