package ipc_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/daemon"
	"github.com/NovoNihilo/clipforge/internal/ipc"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
	"github.com/NovoNihilo/clipforge/internal/testsupport"
	"github.com/NovoNihilo/clipforge/internal/workflow"
)

func startServer(t *testing.T) (*ipc.Client, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	executor := stageexec.New(cfg, &collab.Set{}, logging.NewNop())
	manager := workflow.NewManager(cfg, store, executor, logging.NewNop())
	d, err := daemon.New(cfg, store, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	socketPath := filepath.Join(t.TempDir(), "clipforge.sock")
	server, err := ipc.NewServer(context.Background(), socketPath, d, store, logging.NewNop())
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, store
}

func TestJobAddShowList(t *testing.T) {
	client, _ := startServer(t)

	added, err := client.JobAdd("twitch:abc", "https://clips.twitch.tv/abc")
	if err != nil {
		t.Fatalf("JobAdd: %v", err)
	}
	if added.Job.Stage != string(queue.StageDiscovered) {
		t.Fatalf("expected discovered, got %s", added.Job.Stage)
	}

	// Duplicate ids surface as RPC errors.
	if _, err := client.JobAdd("twitch:abc", "https://clips.twitch.tv/abc"); err == nil {
		t.Fatal("duplicate add must fail")
	}

	shown, err := client.JobShow("twitch:abc")
	if err != nil {
		t.Fatalf("JobShow: %v", err)
	}
	if shown.Job.SourceURL != "https://clips.twitch.tv/abc" {
		t.Fatalf("unexpected source url: %s", shown.Job.SourceURL)
	}

	list, err := client.JobList([]string{"discovered"})
	if err != nil {
		t.Fatalf("JobList: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != "twitch:abc" {
		t.Fatalf("unexpected listing: %#v", list.Jobs)
	}

	if _, err := client.JobList([]string{"nonsense"}); err == nil {
		t.Fatal("unknown stage filter must fail")
	}
}

func TestJobShowMissing(t *testing.T) {
	client, _ := startServer(t)
	if _, err := client.JobShow("ghost"); err == nil {
		t.Fatal("expected error for missing job")
	}
}

func TestJobResetOverIPC(t *testing.T) {
	client, store := startServer(t)
	ctx := context.Background()

	testsupport.NewJob(t, store, "clip-1", "u")
	testsupport.MustLease(t, store, "clip-1", "w")
	if ok, err := store.MarkFailed(ctx, "clip-1", "w", queue.StageDiscovered, "boom"); err != nil || !ok {
		t.Fatalf("MarkFailed: ok=%v err=%v", ok, err)
	}

	reset, err := client.JobReset("clip-1")
	if err != nil {
		t.Fatalf("JobReset: %v", err)
	}
	if reset.Job.Stage != string(queue.StageDiscovered) {
		t.Fatalf("expected discovered after reset, got %s", reset.Job.Stage)
	}

	// Resetting a job that is not failed surfaces the validation error.
	if _, err := client.JobReset("clip-1"); err == nil {
		t.Fatal("reset of non-failed job must fail")
	}
}

func TestJobRemoveAndStats(t *testing.T) {
	client, store := startServer(t)

	testsupport.NewJob(t, store, "a", "u")
	testsupport.NewJob(t, store, "b", "u")

	stats, err := client.QueueStats()
	if err != nil {
		t.Fatalf("QueueStats: %v", err)
	}
	if stats.Stats["discovered"] != 2 {
		t.Fatalf("unexpected stats: %#v", stats.Stats)
	}

	removed, err := client.JobRemove("a")
	if err != nil {
		t.Fatalf("JobRemove: %v", err)
	}
	if !removed.Removed {
		t.Fatal("expected removal")
	}
	removed, err = client.JobRemove("a")
	if err != nil {
		t.Fatalf("JobRemove again: %v", err)
	}
	if removed.Removed {
		t.Fatal("second removal should report nothing deleted")
	}
}

func TestStatusOverIPC(t *testing.T) {
	client, store := startServer(t)
	testsupport.NewJob(t, store, "clip-1", "u")

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.QueueStats["discovered"] != 1 {
		t.Fatalf("unexpected queue stats: %#v", status.QueueStats)
	}
	if status.PID == 0 {
		t.Fatal("status should report a pid")
	}
}
