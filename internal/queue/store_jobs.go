package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, source_url, stage, failure_stage, attempt_count, payload_json, error_message, lease_owner, lease_expires_at, next_attempt_at, created_at, updated_at"

// Create inserts a new job in the discovered stage. The id is the external
// clip reference supplied by discovery and must be unique.
func (s *Store) Create(ctx context.Context, id, sourceURL string, payload map[string]string) (*Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("job id is required")
	}
	if payload == nil {
		payload = map[string]string{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	timestamp := formatTime(time.Now())
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, source_url, stage, payload_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		sourceURL,
		StageDiscovered,
		string(payloadJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create job %s: %w", id, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by stage set (or all jobs when no stage is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = stage
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListRunnable returns up to limit jobs in the given stages that carry no
// live lease and whose backoff window has elapsed, oldest update first.
func (s *Store) ListRunnable(ctx context.Context, stages []Stage, limit int) ([]*Job, error) {
	if len(stages) == 0 || limit <= 0 {
		return nil, nil
	}
	now := formatTime(time.Now())
	placeholders := makePlaceholders(len(stages))
	args := make([]any, 0, len(stages)+3)
	for _, stage := range stages {
		args = append(args, stage)
	}
	args = append(args, now, now, limit)

	query := `SELECT ` + jobColumns + ` FROM jobs
        WHERE stage IN (` + placeholders + `)
          AND (lease_expires_at IS NULL OR lease_expires_at < ?)
          AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
        ORDER BY updated_at ASC
        LIMIT ?`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runnable jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// Remove deletes a job by identifier. Operator action only; the pipeline
// never deletes jobs.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearPackaged removes completed jobs from the queue.
func (s *Store) ClearPackaged(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE stage = ?`, StagePackaged)
	if err != nil {
		return 0, fmt.Errorf("clear packaged: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[Stage]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT stage, COUNT(1) FROM jobs GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Stage]int)
	for rows.Next() {
		var stage Stage
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[stage] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for stage, count := range stats {
		health.Total += count
		switch stage {
		case StageFailed:
			health.Failed += count
		case StagePackaged:
			health.Packaged += count
		default:
			health.Runnable += count
		}
	}
	return health, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		sourceURL     string
		stageStr      string
		failureStage  sql.NullString
		attemptCount  int
		payloadJSON   string
		errorMessage  sql.NullString
		leaseOwner    sql.NullString
		leaseExpires  sql.NullString
		nextAttemptAt sql.NullString
		createdRaw    string
		updatedRaw    string
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&stageStr,
		&failureStage,
		&attemptCount,
		&payloadJSON,
		&errorMessage,
		&leaseOwner,
		&leaseExpires,
		&nextAttemptAt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourceURL:    sourceURL,
		Stage:        Stage(stageStr),
		FailureStage: Stage(failureStage.String),
		AttemptCount: attemptCount,
		ErrorMessage: errorMessage.String,
		LeaseOwner:   leaseOwner.String,
		Payload:      map[string]string{},
	}
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &job.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for job %s: %w", id, err)
		}
	}
	if leaseExpires.Valid {
		if t, err := parseTimeString(leaseExpires.String); err == nil {
			job.LeaseExpiresAt = &t
		}
	}
	if nextAttemptAt.Valid {
		if t, err := parseTimeString(nextAttemptAt.String); err == nil {
			job.NextAttemptAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
