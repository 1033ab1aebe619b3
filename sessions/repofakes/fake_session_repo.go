package repofakes

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory sessions.Repo. It counts writes so tests
// can assert that reads had no side effects.
type FakeSessionRepo struct {
	sessions map[string]sessions.Session
	lock     sync.RWMutex

	writes int
	// Err, when set, is returned from every call.
	Err error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[string]sessions.Session)}
}

func (r *FakeSessionRepo) Create(ctx context.Context, s *sessions.Session) error {
	if r.Err != nil {
		return r.Err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	stored := *s
	stored.Fresh = false
	r.sessions[s.ID] = stored
	r.writes++
	return nil
}

func (r *FakeSessionRepo) Get(ctx context.Context, id string) (*sessions.Session, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (r *FakeSessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	if r.Err != nil {
		return r.Err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	r.sessions[id] = s
	r.writes++
	return nil
}

func (r *FakeSessionRepo) Delete(ctx context.Context, id string) error {
	if r.Err != nil {
		return r.Err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.writes++
	}
	return nil
}

func (r *FakeSessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
			r.writes++
		}
	}
	return nil
}

func (r *FakeSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for id, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, id)
			n++
		}
	}
	r.writes += int(n)
	return n, nil
}

// Writes returns the number of mutations applied so far.
func (r *FakeSessionRepo) Writes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}

func (r *FakeSessionRepo) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}
