package domain

import (
	"context"
	"time"
)

// VerificationStore persists verification records keyed by normalized phone.
// Implementations guarantee that, per phone, at most one record is active at any time.
type VerificationStore interface {
	// Issue supersedes any unconsumed record of rec.Phone and stores rec.
	Issue(ctx context.Context, rec *VerificationRecord) error
	// Consume evaluates code against the phone's current record and persists the
	// resulting mutation in the same critical section.
	Consume(ctx context.Context, phone, code string, now time.Time, maxAttempts int) (ConsumeResult, error)
	// Clear deletes records stored under any of phones.
	Clear(ctx context.Context, phones []string) (int, error)
	ClearAll(ctx context.Context) (int, error)
	// SweepExpired removes every record whose expiry is before now.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// UserStore is the read-only account lookup used for session validation.
type UserStore interface {
	Get(ctx context.Context, userID string) (*User, error)
}

// Cooldown gates how often a code may be requested for the same phone.
type Cooldown interface {
	// Acquire returns ErrTooSoon when key was acquired less than window ago.
	Acquire(ctx context.Context, key string, window time.Duration) error
	Release(ctx context.Context, key string) error
	// ReleaseAll drops every key and returns how many were held.
	ReleaseAll(ctx context.Context) (int, error)
}
