package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/NovoNihilo/clipforge/internal/ipc"
)

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

func jobRow(job ipc.Job) []string {
	errColumn := job.ErrorMessage
	if job.FailureStage != "" {
		errColumn = fmt.Sprintf("[%s] %s", job.FailureStage, errColumn)
	}
	return []string{
		job.ID,
		job.Stage,
		fmt.Sprintf("%d", job.AttemptCount),
		formatAge(job.UpdatedAt),
		truncate(job.SourceURL, 48),
		truncate(strings.TrimSpace(errColumn), 40),
	}
}
