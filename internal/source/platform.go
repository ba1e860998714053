package source

import (
	"strings"

	"clipdigest/internal/tasks"
)

// ClassifyPlatform tags a source URL by hosting platform. Anything that is
// not tiktok.com is treated as douyin, matching the two platforms the
// pipeline supports.
func ClassifyPlatform(rawURL string) tasks.Platform {
	if strings.Contains(strings.ToLower(rawURL), "tiktok.com") {
		return tasks.PlatformTikTok
	}
	return tasks.PlatformDouyin
}
