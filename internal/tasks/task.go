package tasks

import "time"

// Platform identifies where a source URL points.
type Platform string

const (
	PlatformTikTok Platform = "tiktok"
	PlatformDouyin Platform = "douyin"
)

// Task is a single unit of pipeline work tracked from submission to a
// terminal state.
type Task struct {
	ID            int64
	SourceURL     string
	VideoID       string
	Platform      Platform
	Status        Status
	Progress      int
	VideoKey      string
	AudioKey      string
	TranscriptKey string
	SummaryKey    string
	Transcription string
	Summary       string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// HasTranscription reports whether the task produced any transcript text.
func (t *Task) HasTranscription() bool {
	return t.Transcription != ""
}

// SummaryRecord is one stored summary for a task. A task accumulates records
// as it is resummarized; sort_order preserves insertion order.
type SummaryRecord struct {
	ID           int64
	TaskID       int64
	Name         string
	Content      string
	CustomPrompt string
	SortOrder    int
	CreatedAt    time.Time
}
