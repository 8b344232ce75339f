package workflow

import (
	"time"

	"github.com/NovoNihilo/clipforge/internal/config"
)

// retryDelay computes the exponential backoff for the next attempt.
// attempt is the number of retries already recorded, so the first retry
// waits the base interval and each one after doubles, up to the cap.
func retryDelay(wf config.Workflow, attempt int) time.Duration {
	base := time.Duration(wf.RetryBackoffBase) * time.Second
	max := time.Duration(wf.RetryBackoffMax) * time.Second
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
