package source

import (
	"testing"

	"clipdigest/internal/tasks"
)

func TestClassifyPlatform(t *testing.T) {
	cases := []struct {
		url  string
		want tasks.Platform
	}{
		{"https://www.tiktok.com/@user/video/123", tasks.PlatformTikTok},
		{"https://vm.tiktok.com/ZMabc/", tasks.PlatformTikTok},
		{"https://WWW.TIKTOK.COM/@U/video/1", tasks.PlatformTikTok},
		{"https://v.douyin.com/iYxyz/", tasks.PlatformDouyin},
		{"https://www.douyin.com/video/7123", tasks.PlatformDouyin},
		{"https://example.com/clip", tasks.PlatformDouyin},
	}
	for _, tc := range cases {
		if got := ClassifyPlatform(tc.url); got != tc.want {
			t.Errorf("ClassifyPlatform(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}
