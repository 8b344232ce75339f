package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NovoNihilo/clipforge/internal/services"
)

// CompareAndAdvance atomically moves a job from expected to next, merging
// the payload patch, only when the current stage equals expected and the
// caller holds a live lease. A mismatch returns false without mutating
// anything, so callers detect stale state without exception-driven control
// flow. Success resets the attempt counter and clears error bookkeeping.
func (s *Store) CompareAndAdvance(ctx context.Context, id, owner string, expected, next Stage, patch map[string]string) (bool, error) {
	if !ValidTransition(expected, next) {
		return false, fmt.Errorf("illegal transition %s -> %s", expected, next)
	}
	if err := ValidatePatch(expected, patch); err != nil {
		return false, err
	}

	ctx = ensureContext(ctx)
	var advanced bool
	err := retryOnBusy(ctx, func() error {
		advanced = false
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		current, payload, err := lockJobState(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now()
		if current.Stage != expected || current.LeaseOwner != owner || !current.Leased(now) {
			return nil
		}

		for key, value := range patch {
			payload[key] = value
		}
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE jobs
             SET stage = ?, payload_json = ?, attempt_count = 0, error_message = NULL,
                 failure_stage = NULL, next_attempt_at = NULL, updated_at = ?
             WHERE id = ? AND stage = ? AND lease_owner = ?`,
			next,
			string(payloadJSON),
			formatTime(now),
			id,
			expected,
			owner,
		)
		if err != nil {
			return fmt.Errorf("advance job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected != 1 {
			return nil
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit advance: %w", err)
		}
		advanced = true
		return nil
	})
	return advanced, err
}

// MarkFailed moves a job sideways into failed with the same compare-and-swap
// discipline, recording which stage failed and the error detail.
func (s *Store) MarkFailed(ctx context.Context, id, owner string, expected Stage, errorMessage string) (bool, error) {
	if expected == StagePackaged || expected == StageFailed {
		return false, fmt.Errorf("cannot fail from stage %s", expected)
	}
	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET stage = ?, failure_stage = ?, error_message = ?, next_attempt_at = NULL, updated_at = ?
         WHERE id = ? AND stage = ? AND lease_owner = ? AND lease_expires_at >= ?`,
		StageFailed,
		expected,
		nullableString(errorMessage),
		formatTime(now),
		id,
		expected,
		owner,
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// RecordRetry bumps the attempt counter and schedules re-eligibility without
// leaving the current stage. The job becomes invisible to ListRunnable until
// nextAttemptAt passes.
func (s *Store) RecordRetry(ctx context.Context, id, owner string, expected Stage, errorMessage string, nextAttemptAt time.Time) (bool, error) {
	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET attempt_count = attempt_count + 1, error_message = ?, next_attempt_at = ?, updated_at = ?
         WHERE id = ? AND stage = ? AND lease_owner = ? AND lease_expires_at >= ?`,
		nullableString(errorMessage),
		formatTime(nextAttemptAt),
		formatTime(now),
		id,
		expected,
		owner,
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("record retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ResetFailed is the operator recovery path: a failed job returns to the
// stage it failed at with the attempt counter cleared. Payload accumulated
// by earlier stages is untouched.
func (s *Store) ResetFailed(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Stage != StageFailed {
		return nil, services.Wrap(services.ErrValidation, "queue", "reset job",
			fmt.Sprintf("job %s is %s, not failed", id, job.Stage), nil)
	}
	if job.FailureStage == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "reset job",
			fmt.Sprintf("job %s has no recorded failure stage", id), nil)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET stage = ?, failure_stage = NULL, attempt_count = 0, error_message = NULL,
             next_attempt_at = NULL, lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND stage = ?`,
		job.FailureStage,
		formatTime(time.Now()),
		id,
		StageFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("reset failed job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		// Raced with another reset; surface current state.
		return nil, fmt.Errorf("reset job %s: %w", id, services.ErrConflict)
	}
	return s.GetByID(ctx, id)
}

func lockJobState(ctx context.Context, tx *sql.Tx, id string) (*Job, map[string]string, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT stage, lease_owner, lease_expires_at, payload_json FROM jobs WHERE id = ?`, id)

	var (
		stageStr     string
		leaseOwner   sql.NullString
		leaseExpires sql.NullString
		payloadJSON  string
	)
	if err := row.Scan(&stageStr, &leaseOwner, &leaseExpires, &payloadJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read job state: %w", err)
	}

	job := &Job{ID: id, Stage: Stage(stageStr), LeaseOwner: leaseOwner.String}
	if leaseExpires.Valid {
		if t, err := parseTimeString(leaseExpires.String); err == nil {
			job.LeaseExpiresAt = &t
		}
	}
	payload := map[string]string{}
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, nil, fmt.Errorf("decode payload for job %s: %w", id, err)
		}
	}
	return job, payload, nil
}
