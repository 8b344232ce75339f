// Package stageexec dispatches one leased job to the collaborator that
// owns its current stage and folds the outcome into a Result the driver
// persists through the store. Classification lives here: a stage either
// advanced, wants a retry, or failed for good.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/NovoNihilo/clipforge/internal/collab"
	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/services"
)

// ResultKind classifies a stage outcome.
type ResultKind int

const (
	// KindAdvanced means the stage succeeded and Next/Patch are set.
	KindAdvanced ResultKind = iota
	// KindRetry means the failure was transient and the job should be
	// rescheduled.
	KindRetry
	// KindFatal means the job should be parked as failed.
	KindFatal
	// KindInterrupted means shutdown cancelled the stage mid-flight. The
	// job keeps its stage and attempt count and runs again once released.
	KindInterrupted
)

func (k ResultKind) String() string {
	switch k {
	case KindAdvanced:
		return "advanced"
	case KindRetry:
		return "retry"
	case KindInterrupted:
		return "interrupted"
	default:
		return "fatal"
	}
}

// Result is what executing one stage produced.
type Result struct {
	Kind  ResultKind
	Next  queue.Stage
	Patch map[string]string
	Err   error
}

// stageSpec binds a stage to its collaborator call and retry policy.
type stageSpec struct {
	name    string
	timeout func(config.Stages) int
	// transientAllowed gates KindRetry. Deciding and packaging are local
	// computation, so their failures never improve on a second run.
	transientAllowed bool
	invoke           func(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error)
}

// Executor runs the collaborator for a job's current stage.
type Executor struct {
	cfg     *config.Config
	collabs *collab.Set
	logger  *slog.Logger
	specs   map[queue.Stage]stageSpec
}

// New builds an executor over the collaborator set.
func New(cfg *config.Config, collabs *collab.Set, logger *slog.Logger) *Executor {
	e := &Executor{
		cfg:     cfg,
		collabs: collabs,
		logger:  logging.NewComponentLogger(logger, "stageexec"),
	}
	e.specs = map[queue.Stage]stageSpec{
		queue.StageDiscovered: {
			name:             "download",
			timeout:          func(s config.Stages) int { return s.DownloadTimeout },
			transientAllowed: true,
			invoke:           invokeDownload,
		},
		queue.StageDownloaded: {
			name:             "transcribe",
			timeout:          func(s config.Stages) int { return s.TranscribeTimeout },
			transientAllowed: true,
			invoke:           invokeTranscribe,
		},
		queue.StageTranscribed: {
			name:    "decide",
			timeout: func(s config.Stages) int { return s.DecideTimeout },
			invoke:  invokeDecide,
		},
		queue.StageDecided: {
			name:             "render",
			timeout:          func(s config.Stages) int { return s.RenderTimeout },
			transientAllowed: true,
			invoke:           invokeRender,
		},
		queue.StageRendered: {
			name:    "package",
			timeout: func(s config.Stages) int { return s.PackageTimeout },
			invoke:  invokePackage,
		},
	}
	return e
}

// Execute runs the collaborator owning the job's current stage and
// classifies the outcome. The job itself is never mutated here; the
// driver applies the Result through the store's compare-and-swap ops.
func (e *Executor) Execute(ctx context.Context, job *queue.Job) Result {
	spec, ok := e.specs[job.Stage]
	if !ok {
		return Result{Kind: KindFatal, Err: fmt.Errorf("no executor for stage %s", job.Stage)}
	}
	next, ok := queue.NextStage(job.Stage)
	if !ok {
		return Result{Kind: KindFatal, Err: fmt.Errorf("stage %s has no successor", job.Stage)}
	}

	stageCtx := services.WithStage(services.WithJobID(ctx, job.ID), spec.name)
	if secs := spec.timeout(e.cfg.Stages); secs > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	stageLogger := logging.WithContext(stageCtx, e.logger)
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", job.AttemptCount+1))

	start := time.Now()
	patch, err := spec.invoke(stageCtx, e, job)
	if err != nil {
		// A cancelled parent context is shutdown, not a verdict on the
		// job. Stage timeouts surface as DeadlineExceeded on stageCtx and
		// still go through classification below.
		if errors.Is(ctx.Err(), context.Canceled) {
			stageLogger.Info("stage interrupted",
				logging.String(logging.FieldEventType, "stage_interrupted"),
				logging.Duration("elapsed", time.Since(start)))
			return Result{Kind: KindInterrupted, Err: err}
		}
		kind := KindFatal
		if spec.transientAllowed && services.IsRetryable(err) {
			kind = KindRetry
		}
		stageLogger.Warn("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("resolution", kind.String()),
			logging.String(logging.FieldErrorKind, services.Details(err).Kind),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err))
		return Result{Kind: kind, Err: err}
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_stage", string(next)),
		logging.Duration("elapsed", time.Since(start)))
	return Result{Kind: KindAdvanced, Next: next, Patch: patch}
}

func invokeDownload(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error) {
	result, err := e.collabs.Downloader.Download(ctx, job.ID, job.SourceURL)
	if err != nil {
		return nil, err
	}
	patch := map[string]string{"media_path": result.MediaPath}
	if result.DurationSeconds > 0 {
		patch["duration_seconds"] = collab.FormatDuration(result.DurationSeconds)
	}
	return patch, nil
}

func invokeTranscribe(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error) {
	result, err := e.collabs.Transcriber.Transcribe(ctx, job.ID, job.Payload["media_path"])
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"transcript_path": result.TranscriptPath,
		"language":        result.Language,
	}, nil
}

func invokeDecide(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error) {
	result, err := e.collabs.Decider.Decide(ctx, job.ID, job.Payload["transcript_path"])
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"decision_path": result.DecisionPath,
		"viral_score":   strconv.Itoa(result.ViralScore),
	}, nil
}

func invokeRender(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error) {
	renderedPath, err := e.collabs.Renderer.Render(ctx, job.ID, job.Payload["media_path"], job.Payload["decision_path"])
	if err != nil {
		return nil, err
	}
	return map[string]string{"rendered_path": renderedPath}, nil
}

func invokePackage(ctx context.Context, e *Executor, job *queue.Job) (map[string]string, error) {
	bundleDir, err := e.collabs.Packager.Package(ctx, job.ID, job.Payload["rendered_path"], job.Payload["decision_path"])
	if err != nil {
		return nil, err
	}
	return map[string]string{"package_path": bundleDir}, nil
}
