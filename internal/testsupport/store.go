package testsupport

import (
	"context"
	"testing"

	"github.com/NovoNihilo/clipforge/internal/config"
	"github.com/NovoNihilo/clipforge/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a discovered job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, id, sourceURL string) *queue.Job {
	t.Helper()

	job, err := store.Create(context.Background(), id, sourceURL, map[string]string{"source_url": sourceURL})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}

// MustLease acquires a lease for tests and fails the test on refusal.
func MustLease(t testing.TB, store *queue.Store, id, owner string) {
	t.Helper()

	ok, err := store.Lease(context.Background(), id, owner, testLeaseTTL)
	if err != nil {
		t.Fatalf("store.Lease: %v", err)
	}
	if !ok {
		t.Fatalf("expected to lease job %s as %s", id, owner)
	}
}
