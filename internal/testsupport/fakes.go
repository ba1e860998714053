package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"clipdigest/internal/dispatch"
	"clipdigest/internal/source"
	"clipdigest/internal/tasks"
)

// FakeResolver implements source.Resolver with canned metadata and call
// counters.
type FakeResolver struct {
	VideoID  string
	Platform tasks.Platform

	ResolveErr  error
	DownloadErr error

	ResolveCalls  atomic.Int32
	DownloadCalls atomic.Int32
	ExpandURLs    []string
}

func (f *FakeResolver) Resolve(_ context.Context, rawURL string) (*source.VideoInfo, error) {
	f.ResolveCalls.Add(1)
	if f.ResolveErr != nil {
		return nil, f.ResolveErr
	}
	platform := f.Platform
	if platform == "" {
		platform = source.ClassifyPlatform(rawURL)
	}
	return &source.VideoInfo{ID: f.VideoID, Platform: platform, PageURL: rawURL}, nil
}

func (f *FakeResolver) Download(_ context.Context, rawURL, destDir string) (string, *source.VideoInfo, error) {
	f.DownloadCalls.Add(1)
	if f.DownloadErr != nil {
		return "", nil, f.DownloadErr
	}
	platform := f.Platform
	if platform == "" {
		platform = source.ClassifyPlatform(rawURL)
	}
	info := &source.VideoInfo{ID: f.VideoID, Platform: platform, PageURL: rawURL}
	path := filepath.Join(destDir, f.VideoID+".mp4")
	if err := os.WriteFile(path, []byte("fake video"), 0o644); err != nil {
		return "", nil, err
	}
	return path, info, nil
}

func (f *FakeResolver) ExpandCollection(_ context.Context, _ string, max int) ([]string, error) {
	if len(f.ExpandURLs) == 0 {
		return nil, errors.New("collection contains no videos")
	}
	urls := f.ExpandURLs
	if max > 0 && len(urls) > max {
		urls = urls[:max]
	}
	return urls, nil
}

// FakeExtractor implements audio.Extractor by writing a placeholder WAV.
type FakeExtractor struct {
	Err   error
	Calls atomic.Int32
}

func (f *FakeExtractor) Extract(_ context.Context, _, audioPath string) error {
	f.Calls.Add(1)
	if f.Err != nil {
		return f.Err
	}
	return os.WriteFile(audioPath, []byte("fake audio"), 0o644)
}

// FakeTranscriber implements whisper.Service with a fixed transcript. A
// non-nil Block makes Transcribe wait until the channel closes, letting
// tests hold a task mid-pipeline.
type FakeTranscriber struct {
	Text  string
	Err   error
	Block chan struct{}
	Calls atomic.Int32
}

func (f *FakeTranscriber) Transcribe(_ context.Context, _ *dispatch.Worker, _ string) (string, error) {
	f.Calls.Add(1)
	if f.Block != nil {
		<-f.Block
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// FakeSummarizer implements llm.Client with a fixed summary, recording the
// prompt it was handed.
type FakeSummarizer struct {
	Summary string
	Err     error
	Calls   atomic.Int32

	LastPrompt        string
	LastTranscription string
}

func (f *FakeSummarizer) Summarize(_ context.Context, transcription, customPrompt string) (string, error) {
	f.Calls.Add(1)
	f.LastPrompt = customPrompt
	f.LastTranscription = transcription
	if f.Err != nil {
		return "", f.Err
	}
	return f.Summary, nil
}
