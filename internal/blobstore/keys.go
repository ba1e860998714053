package blobstore

import "fmt"

// Object keys are derived solely from the video id, so a resubmitted video
// lands on the same keys and earlier artifacts are found and reused.

func VideoKey(videoID string) string {
	return fmt.Sprintf("videos/%s.mp4", videoID)
}

func AudioKey(videoID string) string {
	return fmt.Sprintf("videos/%s_audio.wav", videoID)
}

func TranscriptKey(videoID string) string {
	return fmt.Sprintf("videos/%s_transcription.txt", videoID)
}

func SummaryKey(videoID string) string {
	return fmt.Sprintf("videos/%s_summary.txt", videoID)
}
