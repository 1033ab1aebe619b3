package verification

import (
	"context"
	"time"
)

// Code is the stored form of a one-time email verification code. The
// plaintext is never persisted.
type Code struct {
	UserID       string
	CodeHash     string
	ExpiresAt    time.Time
	AttemptCount int
	CreatedAt    time.Time
}

// Repo persists at most one code per user.
type Repo interface {
	// Upsert replaces any existing code for c.UserID and resets its attempts.
	Upsert(ctx context.Context, c *Code) error
	Get(ctx context.Context, userID string) (*Code, error)
	// IncrementAttempts atomically bumps the attempt counter of the user's
	// unexpired code and returns the updated row. errors.ErrNotFound means
	// there is no code or it has expired.
	IncrementAttempts(ctx context.Context, userID string, now time.Time) (*Code, error)
	Delete(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserVerifier flips a user's emailVerified flag.
type UserVerifier interface {
	SetEmailVerified(ctx context.Context, userID string) error
}
