package queue

import (
	"context"
	"fmt"
	"time"
)

// Lease acquires an exclusive, time-bounded claim on a job. It returns false
// when another owner holds an unexpired lease, or when the job is terminal.
// The current holder may re-lease to refresh its claim. Expired leases are
// taken over silently: the TTL is the crash-recovery guarantee.
func (s *Store) Lease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	if owner == "" {
		return false, fmt.Errorf("lease owner is required")
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive")
	}
	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET lease_owner = ?, lease_expires_at = ?
         WHERE id = ? AND stage != ?
           AND (lease_owner IS NULL OR lease_owner = ?
                OR lease_expires_at IS NULL OR lease_expires_at < ?)`,
		owner,
		formatTime(now.Add(ttl)),
		id,
		StagePackaged,
		owner,
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("lease job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ExtendLease pushes out the expiry of a lease the caller still holds.
// Returns false when the lease was lost (expired and re-acquired elsewhere).
func (s *Store) ExtendLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET lease_expires_at = ?
         WHERE id = ? AND lease_owner = ? AND lease_expires_at >= ?`,
		formatTime(now.Add(ttl)),
		id,
		owner,
		formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("extend lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// ReleaseLease drops the caller's claim. Releasing a lease someone else now
// holds is a no-op.
func (s *Store) ReleaseLease(ctx context.Context, id, owner string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET lease_owner = NULL, lease_expires_at = NULL
         WHERE id = ? AND lease_owner = ?`,
		id,
		owner,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
