package collab_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/services"
	"github.com/NovoNihilo/clipforge/internal/testsupport"
)

func TestYtDlpDownload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	// Stub yt-dlp: drop the media file and the info sidecar where the
	// client expects them.
	jobDir := filepath.Join(cfg.Paths.StagingDir, "job-1")
	cfg.Tools.YtDlpBinary = testsupport.WriteScript(t, t.TempDir(), "yt-dlp", fmt.Sprintf(
		"mkdir -p %[1]s\nprintf video > %[1]s/source.mp4\nprintf '{\"duration\": 42.5}' > %[1]s/source.info.json",
		jobDir))

	client := collab.NewYtDlpClient(cfg, logging.NewNop())
	result, err := client.Download(context.Background(), "job-1", "https://clips.twitch.tv/abc")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if result.MediaPath != filepath.Join(jobDir, "source.mp4") {
		t.Fatalf("unexpected media path: %s", result.MediaPath)
	}
	if result.DurationSeconds != 42.5 {
		t.Fatalf("duration not read from info json: %v", result.DurationSeconds)
	}
}

func TestYtDlpUnsupportedURLIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Tools.YtDlpBinary = testsupport.WriteScript(t, t.TempDir(), "yt-dlp",
		"echo 'ERROR: Unsupported URL: https://nope.example' >&2\nexit 1")

	client := collab.NewYtDlpClient(cfg, logging.NewNop())
	_, err := client.Download(context.Background(), "job-1", "https://nope.example")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("unsupported url must be fatal, got %v", err)
	}
}

func TestYtDlpNetworkFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Tools.YtDlpBinary = testsupport.WriteScript(t, t.TempDir(), "yt-dlp",
		"echo 'ERROR: unable to download video data: timed out' >&2\nexit 1")

	client := collab.NewYtDlpClient(cfg, logging.NewNop())
	_, err := client.Download(context.Background(), "job-1", "https://clips.twitch.tv/abc")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("network failure must be transient, got %v", err)
	}
}

func TestYtDlpTimeoutIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Tools.YtDlpBinary = testsupport.WriteScript(t, t.TempDir(), "yt-dlp", "sleep 5")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := collab.NewYtDlpClient(cfg, logging.NewNop())
	_, err := client.Download(ctx, "job-1", "https://clips.twitch.tv/abc")
	if err == nil {
		t.Fatal("expected error")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("timeout must be transient, got %v", err)
	}
}

func TestYtDlpEmptyURLIsValidationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := collab.NewYtDlpClient(cfg, logging.NewNop())

	_, err := client.Download(context.Background(), "job-1", "  ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWhisperXTranscribe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mediaPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/source.mp4", "video")
	transcriptPath := filepath.Join(cfg.Paths.StagingDir, "job-1", "source.json")

	client := collab.NewWhisperXClient(cfg, logging.NewNop()).
		WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, os.WriteFile(transcriptPath, []byte(goodTranscript), 0o644)
		})

	result, err := client.Transcribe(context.Background(), "job-1", mediaPath)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if result.TranscriptPath != transcriptPath {
		t.Fatalf("unexpected transcript path: %s", result.TranscriptPath)
	}
	if result.Language != "en" {
		t.Fatalf("language not detected: %q", result.Language)
	}
}

func TestWhisperXMissingMediaIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client := collab.NewWhisperXClient(cfg, logging.NewNop())

	_, err := client.Transcribe(context.Background(), "job-1",
		filepath.Join(cfg.Paths.StagingDir, "missing.mp4"))
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("missing media must be fatal, got %v", err)
	}
}

func TestWhisperXNoTranscriptIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mediaPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/source.mp4", "video")

	client := collab.NewWhisperXClient(cfg, logging.NewNop()).
		WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil // tool "succeeds" but writes nothing
		})

	_, err := client.Transcribe(context.Background(), "job-1", mediaPath)
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("missing transcript must be fatal, got %v", err)
	}
}

func TestFFmpegRender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mediaPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/source.mp4", "video")
	decisionPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/decision.json",
		`{"job_id": "job-1", "accepted": true, "viral_score": 7, "title": "t"}`)
	renderedPath := filepath.Join(cfg.Paths.StagingDir, "job-1", "rendered.mp4")

	renderer := collab.NewFFmpegRenderer(cfg, logging.NewNop()).
		WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, os.WriteFile(renderedPath, []byte("rendered"), 0o644)
		})

	got, err := renderer.Render(context.Background(), "job-1", mediaPath, decisionPath)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got != renderedPath {
		t.Fatalf("unexpected rendered path: %s", got)
	}
}

func TestFFmpegBadInputIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	mediaPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/source.mp4", "junk")
	decisionPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/decision.json",
		`{"job_id": "job-1", "accepted": true}`)

	renderer := collab.NewFFmpegRenderer(cfg, logging.NewNop()).
		WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("Invalid data found when processing input"), errors.New("exit status 1")
		})

	_, err := renderer.Render(context.Background(), "job-1", mediaPath, decisionPath)
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("corrupt input must be fatal, got %v", err)
	}
}

func TestPackagerBundlesClip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	renderedPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/rendered.mp4", "rendered bytes")
	decisionPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/decision.json",
		`{"job_id": "job-1", "accepted": true, "viral_score": 8, "title": "big moment", "language": "en", "hashtags": ["#clips"]}`)

	packager := collab.NewDirPackager(cfg, logging.NewNop())
	bundleDir, err := packager.Package(context.Background(), "job-1", renderedPath, decisionPath)
	if err != nil {
		t.Fatalf("Package failed: %v", err)
	}
	if bundleDir != filepath.Join(cfg.Paths.OutputDir, "job-1") {
		t.Fatalf("unexpected bundle dir: %s", bundleDir)
	}

	clip, err := os.ReadFile(filepath.Join(bundleDir, "clip.mp4"))
	if err != nil || string(clip) != "rendered bytes" {
		t.Fatalf("clip not copied: %v %q", err, clip)
	}

	manifestData, err := os.ReadFile(filepath.Join(bundleDir, "manifest.json"))
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	for _, want := range []string{`"big moment"`, `"viral_score": 8`, `"clip.mp4"`} {
		if !strings.Contains(string(manifestData), want) {
			t.Fatalf("manifest missing %s: %s", want, manifestData)
		}
	}
}

func TestPackagerMissingDecisionIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	renderedPath := testsupport.WriteFile(t, cfg.Paths.StagingDir, "job-1/rendered.mp4", "r")

	packager := collab.NewDirPackager(cfg, logging.NewNop())
	_, err := packager.Package(context.Background(), "job-1", renderedPath,
		filepath.Join(cfg.Paths.StagingDir, "nope.json"))
	if !errors.Is(err, services.ErrFatal) {
		t.Fatalf("missing decision must be fatal, got %v", err)
	}
}
