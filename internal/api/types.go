package api

import (
	"time"

	"clipdigest/internal/tasks"
)

// TaskResponse is the wire representation of a task.
type TaskResponse struct {
	ID            int64      `json:"id"`
	SourceURL     string     `json:"source_url"`
	VideoID       string     `json:"video_id,omitempty"`
	Platform      string     `json:"platform,omitempty"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	VideoKey      string     `json:"video_key,omitempty"`
	AudioKey      string     `json:"audio_key,omitempty"`
	TranscriptKey string     `json:"transcript_key,omitempty"`
	SummaryKey    string     `json:"summary_key,omitempty"`
	Transcription string     `json:"transcription,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// SummaryResponse is the wire representation of one stored summary.
type SummaryResponse struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"task_id"`
	Name         string    `json:"name"`
	Content      string    `json:"content"`
	CustomPrompt string    `json:"custom_prompt,omitempty"`
	SortOrder    int       `json:"sort_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskListResponse pages tasks with the unpaged total.
type TaskListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// BatchCreateResponse reports the outcome of expanding a collection URL.
type BatchCreateResponse struct {
	Created []TaskResponse `json:"created"`
	Failed  []BatchFailure `json:"failed,omitempty"`
}

// BatchFailure is one item that could not be processed in a batch call.
type BatchFailure struct {
	SourceURL string `json:"source_url,omitempty"`
	TaskID    int64  `json:"task_id,omitempty"`
	Error     string `json:"error"`
}

// BatchDeleteResponse reports per-item delete outcomes.
type BatchDeleteResponse struct {
	Deleted []int64        `json:"deleted"`
	Failed  []BatchFailure `json:"failed,omitempty"`
}

// ArtifactURLs carries freshly signed download URLs for a task's artifacts.
type ArtifactURLs struct {
	VideoURL      string `json:"video_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
	TranscriptURL string `json:"transcript_url,omitempty"`
	SummaryURL    string `json:"summary_url,omitempty"`
}

// StatusResponse describes daemon health. ActiveTasks counts executions the
// runtime currently owns; ProcessingTasks counts rows the store sees in a
// processing status, which also covers work stranded by a crash.
type StatusResponse struct {
	Running         bool `json:"running"`
	ActiveTasks     int  `json:"active_tasks"`
	TaskSlots       int  `json:"task_slots"`
	QueuedTasks     int  `json:"queued_tasks"`
	ProcessingTasks int  `json:"processing_tasks"`
	TotalTasks      int  `json:"total_tasks"`
}

func toTaskResponse(task *tasks.Task) TaskResponse {
	return TaskResponse{
		ID:            task.ID,
		SourceURL:     task.SourceURL,
		VideoID:       task.VideoID,
		Platform:      string(task.Platform),
		Status:        string(task.Status),
		Progress:      task.Progress,
		VideoKey:      task.VideoKey,
		AudioKey:      task.AudioKey,
		TranscriptKey: task.TranscriptKey,
		SummaryKey:    task.SummaryKey,
		Transcription: task.Transcription,
		Summary:       task.Summary,
		ErrorMessage:  task.ErrorMessage,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
		CompletedAt:   task.CompletedAt,
	}
}

func toTaskResponses(list []*tasks.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(list))
	for _, task := range list {
		out = append(out, toTaskResponse(task))
	}
	return out
}

func toSummaryResponses(records []*tasks.SummaryRecord) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, SummaryResponse{
			ID:           rec.ID,
			TaskID:       rec.TaskID,
			Name:         rec.Name,
			Content:      rec.Content,
			CustomPrompt: rec.CustomPrompt,
			SortOrder:    rec.SortOrder,
			CreatedAt:    rec.CreatedAt,
		})
	}
	return out
}
