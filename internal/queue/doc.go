// Package queue persists clip jobs in SQLite and exposes the lifecycle
// operations the pipeline driver needs: creation, runnable selection,
// lease-guarded compare-and-advance transitions, retry bookkeeping, and
// operator resets.
//
// Every mutation is a single SQLite transaction and is durable before the
// call returns. Stage transitions are strictly forward along the pipeline
// (or sideways into failed); compare-and-advance verifies the expected
// stage and a live lease in the same predicate, so stale workers can never
// clobber newer state. Jobs are never deleted by the pipeline itself;
// removal is an explicit operator action.
//
// Treat this package as the single source of truth for job semantics; when
// you add stages or payload keys, update schema.sql and the ownership table
// in models.go together.
package queue
