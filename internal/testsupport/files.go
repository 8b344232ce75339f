package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testLeaseTTL = 30 * time.Second

// WriteFile creates a file with contents under dir, creating parents.
func WriteFile(t testing.TB, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteScript drops an executable stub script into dir and returns its path.
// Useful for standing in for external tools like yt-dlp or ffmpeg.
func WriteScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}
