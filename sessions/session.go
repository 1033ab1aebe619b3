package sessions

import (
	"context"
	"time"
)

// Session is server-held proof of authentication. The ID is the opaque
// token carried in the session cookie.
type Session struct {
	ID        string        // Unguessable token (256 bits, base64url)
	UserID    string        // Owning user
	ExpiresAt time.Time     // Absolute expiry, only ever moved forward by renewal
	TTL       time.Duration // Lifetime the session was issued with; renewal reuses it
	Fresh     bool          // Not stored. True when this result must be (re)written to the cookie
}

// Repo persists sessions. Get of a missing id returns errors.ErrNotFound.
// Delete and DeleteByUser are idempotent.
type Repo interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
