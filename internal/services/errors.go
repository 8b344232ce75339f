package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks retry-eligible failures: network timeouts, resource
	// exhaustion, subprocess temporary failures.
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks permanent failures: malformed input, unsupported media,
	// 4xx-equivalent responses.
	ErrFatal = errors.New("fatal failure")
	// ErrValidation marks input that failed a quality or schema gate.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups of jobs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks attempts to create a job whose id already exists.
	ErrDuplicate = errors.New("duplicate")
	// ErrConflict marks lease/version mismatches. Callers re-fetch current
	// state; the condition is never surfaced to the operator.
	ErrConflict = errors.New("store conflict")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error is tagged retry-eligible. Untagged
// errors are treated as transient so unexpected conditions get retried
// rather than permanently failing a job.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFatal) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}

// ErrorDetails captures structured information extracted from a wrapped error.
type ErrorDetails struct {
	Kind    string
	Message string
	Cause   error
}

// Details resolves the sentinel kind and user-facing message for an error.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	d := ErrorDetails{Kind: kindOf(err), Cause: err, Message: err.Error()}
	return d
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrFatal):
		return "fatal"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
