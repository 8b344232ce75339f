package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/daemon"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
	"github.com/NovoNihilo/clipforge/internal/testsupport"
	"github.com/NovoNihilo/clipforge/internal/workflow"
)

func daemonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	// Point the tool checks at something that resolves everywhere.
	cfg.Tools.YtDlpBinary = "sh"
	cfg.Tools.WhisperXBinary = "sh"
	cfg.Tools.FFmpegBinary = "sh"
	cfg.Workflow.MinFreeGiB = 0
	return cfg
}

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store) *daemon.Daemon {
	t.Helper()
	executor := stageexec.New(cfg, &collab.Set{}, logging.NewNop())
	manager := workflow.NewManager(cfg, store, executor, logging.NewNop())
	d, err := daemon.New(cfg, store, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := daemonConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected running daemon and workflow: %#v", status)
	}
	if status.QueueDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("status paths missing: %#v", status)
	}

	d.Stop()
	status, err = d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should report stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := daemonConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := newDaemon(t, cfg, store)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newDaemon(t, cfg, store)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon must fail to start while the lock is held")
	}
}

func TestDaemonPreflightFailureBlocksStart(t *testing.T) {
	cfg := daemonConfig(t)
	cfg.Tools.FFmpegBinary = "definitely-not-a-real-binary"
	store := testsupport.MustOpenStore(t, cfg)

	d := newDaemon(t, cfg, store)
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected preflight to block startup")
	}

	// The lock must be released on failure so a fixed config can start.
	cfg.Tools.FFmpegBinary = "sh"
	retry := newDaemon(t, cfg, store)
	if err := retry.Start(context.Background()); err != nil {
		t.Fatalf("restart after preflight fix: %v", err)
	}
	retry.Stop()
}

func TestDaemonStopIsIdempotent(t *testing.T) {
	cfg := daemonConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.Stop()
	d.Stop()

	// Allow worker goroutines to fully settle before the store closes.
	time.Sleep(10 * time.Millisecond)
}
