// Package source resolves short-video URLs into media. The production
// implementation shells out to yt-dlp; tests substitute fakes.
package source

import (
	"context"

	"clipdigest/internal/tasks"
)

// VideoInfo describes a resolved video before any media is fetched.
type VideoInfo struct {
	ID       string
	Title    string
	Uploader string
	Platform tasks.Platform
	// PageURL is the canonical watch URL after redirects, useful for short
	// links like v.douyin.com.
	PageURL string
	// Duration in seconds as reported by the platform; zero when unknown.
	Duration float64
}

// Resolver is the capability port for everything that touches a video
// platform.
type Resolver interface {
	// Resolve returns metadata for a single video URL without downloading.
	Resolve(ctx context.Context, rawURL string) (*VideoInfo, error)
	// Download fetches the video into destDir and returns the local path
	// along with the resolved metadata.
	Download(ctx context.Context, rawURL, destDir string) (string, *VideoInfo, error)
	// ExpandCollection lists the item URLs of a collection or author page,
	// newest first, capped at max entries.
	ExpandCollection(ctx context.Context, rawURL string, max int) ([]string, error)
}
