package queue

import "github.com/NovoNihilo/clipforge/internal/services"

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = services.ErrNotFound

// ErrDuplicate is returned when creating a job whose id already exists.
var ErrDuplicate = services.ErrDuplicate
