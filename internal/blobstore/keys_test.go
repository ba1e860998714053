package blobstore

import "testing"

func TestKeysAreDeterministic(t *testing.T) {
	cases := []struct {
		name string
		fn   func(string) string
		want string
	}{
		{"video", VideoKey, "videos/abc123.mp4"},
		{"audio", AudioKey, "videos/abc123_audio.wav"},
		{"transcript", TranscriptKey, "videos/abc123_transcription.txt"},
		{"summary", SummaryKey, "videos/abc123_summary.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn("abc123"); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
