package config

const (
	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a configuration populated with sensible defaults. Credential
// fields are intentionally left blank and must come from the config file or
// environment.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    "~/.local/share/clipdigest",
			ScratchDir: "~/.local/share/clipdigest/scratch",
			LogDir:     "~/.local/share/clipdigest/logs",
			APIBind:    "127.0.0.1:7474",
		},
		Blob: Blob{
			Endpoint:         "localhost:9000",
			Bucket:           "clipdigest",
			Secure:           false,
			SignedURLSeconds: 3600,
		},
		Source: Source{
			YTDLPBinary:    "yt-dlp",
			TimeoutSeconds: 300,
			MaxBatchItems:  100,
		},
		Audio: Audio{
			FFmpegBinary:   "ffmpeg",
			TimeoutSeconds: 300,
		},
		Whisper: Whisper{
			Binary:         "whisper",
			Model:          "base",
			ModelDir:       "~/.cache/clipdigest/models",
			Language:       "",
			TimeoutSeconds: 900,
		},
		LLM: LLM{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "deepseek/deepseek-chat-v3.1",
			TimeoutSeconds: 120,
		},
		Workflow: Workflow{
			PollInterval:       5,
			ErrorRetryInterval: 30,
			MaxConcurrentTasks: 3,
			StuckTaskTimeout:   86400,
			CPUWorkers:         1,
			IOWorkers:          4,
			IOTimeout:          600,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
