package stageexec_test

import (
	"context"
	"testing"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/services"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
	"github.com/NovoNihilo/clipforge/internal/testsupport"
)

type fakeDownloader struct {
	result collab.DownloadResult
	err    error
}

func (f fakeDownloader) Download(ctx context.Context, jobID, sourceURL string) (collab.DownloadResult, error) {
	return f.result, f.err
}

type fakeTranscriber struct {
	result collab.TranscribeResult
	err    error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, jobID, mediaPath string) (collab.TranscribeResult, error) {
	return f.result, f.err
}

type fakeDecider struct {
	result collab.DecideResult
	err    error
}

func (f fakeDecider) Decide(ctx context.Context, jobID, transcriptPath string) (collab.DecideResult, error) {
	return f.result, f.err
}

type fakeRenderer struct {
	path string
	err  error
}

func (f fakeRenderer) Render(ctx context.Context, jobID, mediaPath, decisionPath string) (string, error) {
	return f.path, f.err
}

type fakePackager struct {
	path string
	err  error
}

func (f fakePackager) Package(ctx context.Context, jobID, renderedPath, decisionPath string) (string, error) {
	return f.path, f.err
}

func newExecutor(t *testing.T, set *collab.Set) *stageexec.Executor {
	t.Helper()
	return stageexec.New(testsupport.NewConfig(t), set, logging.NewNop())
}

func TestExecuteAdvancesDownload(t *testing.T) {
	exec := newExecutor(t, &collab.Set{
		Downloader: fakeDownloader{result: collab.DownloadResult{MediaPath: "/m", DurationSeconds: 30}},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageDiscovered, SourceURL: "u"}

	result := exec.Execute(context.Background(), job)
	if result.Kind != stageexec.KindAdvanced {
		t.Fatalf("expected advanced, got %s (%v)", result.Kind, result.Err)
	}
	if result.Next != queue.StageDownloaded {
		t.Fatalf("expected next downloaded, got %s", result.Next)
	}
	if result.Patch["media_path"] != "/m" || result.Patch["duration_seconds"] != "30" {
		t.Fatalf("unexpected patch: %#v", result.Patch)
	}
}

func TestExecuteTransientFailureRetries(t *testing.T) {
	exec := newExecutor(t, &collab.Set{
		Downloader: fakeDownloader{err: services.Wrap(services.ErrTransient, "download", "fetch", "timeout", nil)},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageDiscovered, SourceURL: "u"}

	result := exec.Execute(context.Background(), job)
	if result.Kind != stageexec.KindRetry {
		t.Fatalf("expected retry, got %s", result.Kind)
	}
	if result.Err == nil {
		t.Fatal("retry result must carry the error")
	}
}

func TestExecuteFatalFailureParks(t *testing.T) {
	exec := newExecutor(t, &collab.Set{
		Downloader: fakeDownloader{err: services.Wrap(services.ErrFatal, "download", "fetch", "gone", nil)},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageDiscovered, SourceURL: "u"}

	if result := exec.Execute(context.Background(), job); result.Kind != stageexec.KindFatal {
		t.Fatalf("expected fatal, got %s", result.Kind)
	}
}

func TestExecuteDecideNeverRetries(t *testing.T) {
	// Even an error tagged transient must not retry the decide stage.
	exec := newExecutor(t, &collab.Set{
		Decider: fakeDecider{err: services.Wrap(services.ErrTransient, "decide", "evaluate", "flaky", nil)},
	})
	job := &queue.Job{
		ID:    "j",
		Stage: queue.StageTranscribed,
		Payload: map[string]string{
			"transcript_path": "/t",
		},
	}

	if result := exec.Execute(context.Background(), job); result.Kind != stageexec.KindFatal {
		t.Fatalf("decide failures must be fatal, got %s", result.Kind)
	}
}

func TestExecutePackageNeverRetries(t *testing.T) {
	exec := newExecutor(t, &collab.Set{
		Packager: fakePackager{err: services.Wrap(services.ErrTransient, "package", "copy", "flaky", nil)},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageRendered}

	if result := exec.Execute(context.Background(), job); result.Kind != stageexec.KindFatal {
		t.Fatalf("package failures must be fatal, got %s", result.Kind)
	}
}

func TestExecuteFullChainPatches(t *testing.T) {
	set := &collab.Set{
		Downloader:  fakeDownloader{result: collab.DownloadResult{MediaPath: "/m"}},
		Transcriber: fakeTranscriber{result: collab.TranscribeResult{TranscriptPath: "/t", Language: "en"}},
		Decider:     fakeDecider{result: collab.DecideResult{DecisionPath: "/d", ViralScore: 8}},
		Renderer:    fakeRenderer{path: "/r"},
		Packager:    fakePackager{path: "/p"},
	}
	exec := newExecutor(t, set)

	cases := []struct {
		stage queue.Stage
		next  queue.Stage
		key   string
		want  string
	}{
		{queue.StageDiscovered, queue.StageDownloaded, "media_path", "/m"},
		{queue.StageDownloaded, queue.StageTranscribed, "transcript_path", "/t"},
		{queue.StageTranscribed, queue.StageDecided, "viral_score", "8"},
		{queue.StageDecided, queue.StageRendered, "rendered_path", "/r"},
		{queue.StageRendered, queue.StagePackaged, "package_path", "/p"},
	}
	payload := map[string]string{}
	for _, tc := range cases {
		job := &queue.Job{ID: "j", Stage: tc.stage, SourceURL: "u", Payload: payload}
		result := exec.Execute(context.Background(), job)
		if result.Kind != stageexec.KindAdvanced {
			t.Fatalf("stage %s: expected advanced, got %s (%v)", tc.stage, result.Kind, result.Err)
		}
		if result.Next != tc.next {
			t.Fatalf("stage %s: expected next %s, got %s", tc.stage, tc.next, result.Next)
		}
		if result.Patch[tc.key] != tc.want {
			t.Fatalf("stage %s: patch[%s] = %q, want %q", tc.stage, tc.key, result.Patch[tc.key], tc.want)
		}
		for k, v := range result.Patch {
			payload[k] = v
		}
	}
}

func TestExecuteTerminalStageIsFatal(t *testing.T) {
	exec := newExecutor(t, &collab.Set{})
	job := &queue.Job{ID: "j", Stage: queue.StagePackaged}

	if result := exec.Execute(context.Background(), job); result.Kind != stageexec.KindFatal {
		t.Fatalf("expected fatal for terminal stage, got %s", result.Kind)
	}
}

func TestExecuteCancelledDecideLeavesJobUntouched(t *testing.T) {
	// Shutdown cancellation must not be read as a decide verdict even
	// though the decide stage never retries.
	exec := newExecutor(t, &collab.Set{
		Decider: fakeDecider{err: context.Canceled},
	})
	job := &queue.Job{
		ID:      "j",
		Stage:   queue.StageTranscribed,
		Payload: map[string]string{"transcript_path": "/t"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := exec.Execute(ctx, job)
	if result.Kind != stageexec.KindInterrupted {
		t.Fatalf("expected interrupted, got %s (%v)", result.Kind, result.Err)
	}
}

func TestExecuteCancelledDownloadDoesNotRetry(t *testing.T) {
	exec := newExecutor(t, &collab.Set{
		Downloader: fakeDownloader{err: services.Wrap(services.ErrTransient,
			"download", "fetch tool", "yt-dlp killed", context.Canceled)},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageDiscovered, SourceURL: "u"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if result := exec.Execute(ctx, job); result.Kind != stageexec.KindInterrupted {
		t.Fatalf("expected interrupted, got %s", result.Kind)
	}
}

func TestExecuteStageTimeoutStillClassifies(t *testing.T) {
	// A per-stage deadline is a stage outcome, not a shutdown: the
	// transient path must keep working when only stageCtx expired.
	exec := newExecutor(t, &collab.Set{
		Downloader: fakeDownloader{err: services.Wrap(services.ErrTransient,
			"download", "fetch tool", "timed out", context.DeadlineExceeded)},
	})
	job := &queue.Job{ID: "j", Stage: queue.StageDiscovered, SourceURL: "u"}

	if result := exec.Execute(context.Background(), job); result.Kind != stageexec.KindRetry {
		t.Fatalf("expected retry, got %s", result.Kind)
	}
}
