package ipc

import (
	"time"

	"github.com/NovoNihilo/clipforge/internal/queue"
)

// Job is the wire representation of a queue job.
type Job struct {
	ID             string            `json:"id"`
	SourceURL      string            `json:"source_url"`
	Stage          string            `json:"stage"`
	FailureStage   string            `json:"failure_stage,omitempty"`
	AttemptCount   int               `json:"attempt_count"`
	Payload        map[string]string `json:"payload,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	LeaseOwner     string            `json:"lease_owner,omitempty"`
	LeaseExpiresAt *time.Time        `json:"lease_expires_at,omitempty"`
	NextAttemptAt  *time.Time        `json:"next_attempt_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// FromQueueJob converts a queue job into its wire form.
func FromQueueJob(job *queue.Job) Job {
	return Job{
		ID:             job.ID,
		SourceURL:      job.SourceURL,
		Stage:          string(job.Stage),
		FailureStage:   string(job.FailureStage),
		AttemptCount:   job.AttemptCount,
		Payload:        job.Payload,
		ErrorMessage:   job.ErrorMessage,
		LeaseOwner:     job.LeaseOwner,
		LeaseExpiresAt: job.LeaseExpiresAt,
		NextAttemptAt:  job.NextAttemptAt,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	Owner       string         `json:"owner"`
	Workers     int            `json:"workers"`
	QueueStats  map[string]int `json:"queue_stats"`
	LastError   string         `json:"last_error,omitempty"`
	QueueDBPath string         `json:"queue_db_path"`
	LockPath    string         `json:"lock_path"`
	PID         int            `json:"pid"`
}

// JobAddRequest enqueues a new clip job.
type JobAddRequest struct {
	ID        string `json:"id"`
	SourceURL string `json:"source_url"`
}

// JobAddResponse returns the created job.
type JobAddResponse struct {
	Job Job `json:"job"`
}

// JobListRequest filters queue listing by stage.
type JobListRequest struct {
	Stages []string `json:"stages"`
}

// JobListResponse contains queue entries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobShowRequest fetches a single job by id.
type JobShowRequest struct {
	ID string `json:"id"`
}

// JobShowResponse contains a single job.
type JobShowResponse struct {
	Job Job `json:"job"`
}

// JobResetRequest returns a failed job to the stage it failed at.
type JobResetRequest struct {
	ID string `json:"id"`
}

// JobResetResponse contains the job after reset.
type JobResetResponse struct {
	Job Job `json:"job"`
}

// JobRemoveRequest deletes a job by id.
type JobRemoveRequest struct {
	ID string `json:"id"`
}

// JobRemoveResponse reports whether a row was deleted.
type JobRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueStatsRequest fetches per-stage counts.
type QueueStatsRequest struct{}

// QueueStatsResponse contains per-stage counts.
type QueueStatsResponse struct {
	Stats map[string]int `json:"stats"`
}

// ClearPackagedRequest removes packaged jobs.
type ClearPackagedRequest struct{}

// ClearPackagedResponse reports number of removed entries.
type ClearPackagedResponse struct {
	Removed int64 `json:"removed"`
}
