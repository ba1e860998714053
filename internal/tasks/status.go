package tasks

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending         Status = "pending"
	StatusDownloading     Status = "downloading"
	StatusExtractingAudio Status = "extracting_audio"
	StatusTranscribing    Status = "transcribing"
	StatusSummarizing     Status = "summarizing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// ProcessingStatuses lists the states in which a worker owns the task.
func ProcessingStatuses() []Status {
	return []Status{
		StatusDownloading,
		StatusExtractingAudio,
		StatusTranscribing,
		StatusSummarizing,
	}
}

// IsProcessing reports whether a worker currently owns tasks in this status.
func (s Status) IsProcessing() bool {
	switch s {
	case StatusDownloading, StatusExtractingAudio, StatusTranscribing, StatusSummarizing:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status represents a finished task.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether the status is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDownloading, StatusExtractingAudio,
		StatusTranscribing, StatusSummarizing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Progress checkpoints recorded as each stage completes.
const (
	ProgressPending     = 0
	ProgressDownloaded  = 40
	ProgressExtracted   = 60
	ProgressTranscribed = 80
	ProgressComplete    = 100
)
