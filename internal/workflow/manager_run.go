package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NovoNihilo/clipforge/internal/logging"
	"github.com/NovoNihilo/clipforge/internal/queue"
	"github.com/NovoNihilo/clipforge/internal/services"
	"github.com/NovoNihilo/clipforge/internal/stageexec"
)

// dispatch polls the queue and feeds leased jobs to the worker pool.
func (m *Manager) dispatch(ctx context.Context, jobs chan<- *queue.Job) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := m.leaseBatch(ctx)
		if err != nil {
			m.setLastError(err)
			m.logger.Error("failed to fetch runnable jobs",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"))
			if !m.sleep(ctx, m.errorRetry) {
				return
			}
			continue
		}
		if len(batch) == 0 {
			if !m.sleep(ctx, m.pollInterval) {
				return
			}
			continue
		}

		for _, job := range batch {
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}
}

// leaseBatch lists runnable jobs and claims as many as it can. Jobs another
// process leases between the list and the claim simply drop out of the
// batch. Kept separate from dispatch so a different claim strategy can be
// swapped in without touching the loop.
func (m *Manager) leaseBatch(ctx context.Context) ([]*queue.Job, error) {
	limit := m.cfg.Workflow.BatchSize
	if limit <= 0 {
		limit = m.cfg.Workflow.Workers * 2
	}
	candidates, err := m.store.ListRunnable(ctx, queue.RunnableStages(), limit)
	if err != nil {
		return nil, err
	}

	leased := make([]*queue.Job, 0, len(candidates))
	for _, job := range candidates {
		ok, err := m.store.Lease(ctx, job.ID, m.owner, m.leaseTTL)
		if err != nil {
			return leased, err
		}
		if ok {
			leased = append(leased, job)
		}
	}
	return leased, nil
}

// process runs one stage for one leased job and applies the outcome.
func (m *Manager) process(ctx context.Context, job *queue.Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(jobCtx, m.logger)

	keeperCtx, stopKeeper := context.WithCancel(jobCtx)
	keeperDone := make(chan struct{})
	go func() {
		defer close(keeperDone)
		m.keepLease(keeperCtx, job.ID)
	}()

	result := m.executor.Execute(jobCtx, job)

	stopKeeper()
	<-keeperDone

	// Persist the outcome even when we are mid-shutdown: the stage work is
	// already done and dropping the transition would only force a redo.
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(jobCtx), 30*time.Second)
	defer cancel()

	m.apply(applyCtx, logger, job, result)

	if err := m.store.ReleaseLease(applyCtx, job.ID, m.owner); err != nil {
		logger.Warn("failed to release lease", logging.Error(err))
	}
}

func (m *Manager) apply(ctx context.Context, logger *slog.Logger, job *queue.Job, result stageexec.Result) {
	switch result.Kind {
	case stageexec.KindAdvanced:
		ok, err := m.store.CompareAndAdvance(ctx, job.ID, m.owner, job.Stage, result.Next, result.Patch)
		if err != nil {
			logger.Error("failed to persist stage advance", logging.Error(err))
			return
		}
		if !ok {
			// Lost the lease or raced a concurrent writer; the work is
			// idempotent so whoever holds the job now will redo it.
			logger.Debug("stage advance skipped, job state moved underneath us",
				logging.String(logging.FieldEventType, "cas_miss"),
				logging.String(logging.FieldStage, string(job.Stage)))
		}

	case stageexec.KindRetry:
		attempts := job.AttemptCount + 1
		if attempts >= m.cfg.Workflow.MaxAttempts {
			message := fmt.Sprintf("retries exhausted after %d attempts: %s",
				attempts, services.Details(result.Err).Message)
			m.markFailed(ctx, logger, job, message)
			return
		}
		delay := retryDelay(m.cfg.Workflow, job.AttemptCount)
		ok, err := m.store.RecordRetry(ctx, job.ID, m.owner, job.Stage,
			services.Details(result.Err).Message, time.Now().Add(delay))
		if err != nil {
			logger.Error("failed to record retry", logging.Error(err))
			return
		}
		if !ok {
			logger.Debug("retry skipped, job state moved underneath us",
				logging.String(logging.FieldEventType, "cas_miss"))
			return
		}
		logger.Info("stage scheduled for retry",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int("attempt", attempts),
			logging.Duration("delay", delay))

	case stageexec.KindInterrupted:
		// Shutdown caught the stage mid-flight. Leave the row untouched;
		// releasing the lease puts the job back in the runnable set.
		logger.Info("stage interrupted, job left runnable",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.String(logging.FieldStage, string(job.Stage)))

	case stageexec.KindFatal:
		m.markFailed(ctx, logger, job, services.Details(result.Err).Message)
	}
}

func (m *Manager) markFailed(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) {
	ok, err := m.store.MarkFailed(ctx, job.ID, m.owner, job.Stage, message)
	if err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
		return
	}
	if !ok {
		logger.Debug("failure mark skipped, job state moved underneath us",
			logging.String(logging.FieldEventType, "cas_miss"))
		return
	}
	logger.Warn("job parked as failed",
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldStage, string(job.Stage)),
		logging.String("error_message", message))
}

// keepLease extends the job's lease at half-TTL cadence while the stage runs.
func (m *Manager) keepLease(ctx context.Context, jobID string) {
	interval := m.leaseTTL / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := m.store.ExtendLease(ctx, jobID, m.owner, m.leaseTTL)
			if err != nil {
				m.logger.Warn("lease extension failed",
					logging.String(logging.FieldJobID, jobID),
					logging.Error(err))
				continue
			}
			if !ok {
				m.logger.Warn("lease lost while stage in flight",
					logging.String(logging.FieldJobID, jobID),
					logging.String(logging.FieldEventType, "lease_lost"))
				return
			}
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
