package source

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"clipdigest/internal/config"
	"clipdigest/internal/tasks"
)

// stubYTDLP writes a shell script to a temp dir that emits the given stdout
// and returns a resolver pointed at it.
func stubYTDLP(t *testing.T, stdout string) *YTDLP {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are unix-only")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\n"
	path := filepath.Join(dir, "yt-dlp")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return NewYTDLP(config.Source{YTDLPBinary: path, TimeoutSeconds: 10}, nil)
}

func TestResolveParsesMetadata(t *testing.T) {
	resolver := stubYTDLP(t, `{"id":"7345","title":"cooking clip","uploader":"chef","webpage_url":"https://www.tiktok.com/@chef/video/7345","duration":34.5}`)

	info, err := resolver.Resolve(context.Background(), "https://www.tiktok.com/@chef/video/7345")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.ID != "7345" || info.Title != "cooking clip" || info.Uploader != "chef" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Platform != tasks.PlatformTikTok {
		t.Fatalf("platform = %s, want tiktok", info.Platform)
	}
}

func TestResolveRejectsMissingID(t *testing.T) {
	resolver := stubYTDLP(t, `{"title":"no id"}`)
	_, err := resolver.Resolve(context.Background(), "https://v.douyin.com/x")
	if err == nil {
		t.Fatal("expected error for metadata without an id")
	}
}

func TestExpandCollectionCapsEntries(t *testing.T) {
	resolver := stubYTDLP(t, `{"id":"author","entries":[
		{"id":"1","url":"https://www.tiktok.com/@a/video/1"},
		{"id":"2","url":"https://www.tiktok.com/@a/video/2"},
		{"id":"3","url":"https://www.tiktok.com/@a/video/3"}
	]}`)

	urls, err := resolver.ExpandCollection(context.Background(), "https://www.tiktok.com/@a", 2)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("got %d urls, want 2", len(urls))
	}
	if urls[0] != "https://www.tiktok.com/@a/video/1" {
		t.Fatalf("first url = %q", urls[0])
	}
}

func TestExpandCollectionEmptyIsError(t *testing.T) {
	resolver := stubYTDLP(t, `{"id":"author","entries":[]}`)
	_, err := resolver.ExpandCollection(context.Background(), "https://www.tiktok.com/@a", 10)
	if err == nil {
		t.Fatal("expected error for empty collection")
	}
}
