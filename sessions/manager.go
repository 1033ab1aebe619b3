package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
)

const tokenBytes = 32

// UserLoader resolves the owner of a session. It returns errors.ErrNotFound
// when the user no longer exists.
type UserLoader[U any] func(ctx context.Context, userID string) (U, error)

// Result is the outcome of Validate. A nil Session is the unauthenticated
// result and is not an error.
type Result[U any] struct {
	Session *Session
	User    U
}

func (r Result[U]) Authenticated() bool {
	return r.Session != nil
}

// Validator is the read side of Manager used by request-scoped callers.
type Validator[U any] interface {
	Validate(ctx context.Context, sessionID string) (Result[U], error)
}

// Manager issues, validates and slides sessions for user type U.
type Manager[U any] struct {
	repo   Repo
	loader UserLoader[U]
	ttl    time.Duration
	now    func() time.Time
}

type ManagerOption[U any] func(*Manager[U])

// WithNowTime overrides the clock.
func WithNowTime[U any](now func() time.Time) ManagerOption[U] {
	return func(m *Manager[U]) {
		m.now = now
	}
}

func NewManager[U any](repo Repo, loader UserLoader[U], ttl time.Duration, opts ...ManagerOption[U]) (*Manager[U], error) {
	if repo == nil {
		return nil, errors.New("[NewManager] session repo is required")
	}
	if loader == nil {
		return nil, errors.New("[NewManager] user loader is required")
	}
	if ttl <= 0 {
		return nil, errors.Errorf("[NewManager] invalid session ttl %s", ttl)
	}
	m := &Manager[U]{repo: repo, loader: loader, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL is the lifetime given to new and renewed sessions.
func (m *Manager[U]) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for userID expiring after ttl. A non-positive ttl
// uses the manager's default. The returned session is Fresh so the caller
// writes its cookie.
func (m *Manager[U]) Issue(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	id, err := newSessionID()
	if err != nil {
		return nil, errors.Wrap(err, "[Issue] generate session id")
	}
	s := &Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: m.now().Add(ttl).UTC(),
		TTL:       ttl,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, apperrors.Wrapf(err, "[Issue] user %s", userID)
	}
	s.Fresh = true
	return s, nil
}

// Validate resolves sessionID. Unknown, expired and orphaned sessions give
// the unauthenticated result; expired and orphaned rows are deleted on the
// way. A session with less than half of the lifetime it was issued with
// left is renewed in place by that lifetime and returned Fresh. Store failures are returned as errors and never
// reported as unauthenticated.
func (m *Manager[U]) Validate(ctx context.Context, sessionID string) (Result[U], error) {
	var none Result[U]
	if sessionID == "" {
		return none, nil
	}

	s, err := m.repo.Get(ctx, sessionID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return none, nil
	}
	if err != nil {
		return none, apperrors.Wrapf(err, "[Validate] get session")
	}

	now := m.now()
	if !s.ExpiresAt.After(now) {
		if err := m.repo.Delete(ctx, s.ID); err != nil {
			return none, apperrors.Wrapf(err, "[Validate] delete expired session")
		}
		return none, nil
	}

	user, err := m.loader(ctx, s.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		log.Warn().Str("user_id", s.UserID).Msg("session references missing user, deleting")
		if err := m.repo.Delete(ctx, s.ID); err != nil {
			return none, apperrors.Wrapf(err, "[Validate] delete orphaned session")
		}
		return none, nil
	}
	if err != nil {
		return none, apperrors.Wrapf(err, "[Validate] load user %s", s.UserID)
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}
	if s.ExpiresAt.Sub(now) < ttl/2 {
		expiresAt := now.Add(ttl).UTC()
		if err := m.repo.UpdateExpiry(ctx, s.ID, expiresAt); err != nil {
			return none, apperrors.Wrapf(err, "[Validate] renew session")
		}
		s.ExpiresAt = expiresAt
		s.Fresh = true
	}

	return Result[U]{Session: s, User: user}, nil
}

// Invalidate deletes a session. Deleting an absent id is not an error.
func (m *Manager[U]) Invalidate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return apperrors.Wrapf(m.repo.Delete(ctx, sessionID), "[Invalidate]")
}

// InvalidateUser deletes every session owned by userID.
func (m *Manager[U]) InvalidateUser(ctx context.Context, userID string) error {
	return apperrors.Wrapf(m.repo.DeleteByUser(ctx, userID), "[InvalidateUser] user %s", userID)
}

// DeleteExpired removes sessions past their expiry. Validate already ignores
// them, so this is storage hygiene only.
func (m *Manager[U]) DeleteExpired(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpired(ctx, m.now())
}

func newSessionID() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
