package repofake

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/verification"
)

var _ verification.Repo = (*FakeCodeRepo)(nil)

// FakeCodeRepo is an in-memory verification.Repo. IncrementAttempts holds
// the write lock across check and update, matching the single conditional
// UPDATE of the SQL store.
type FakeCodeRepo struct {
	codes map[string]verification.Code
	lock  sync.Mutex
}

func NewFakeCodeRepo() *FakeCodeRepo {
	return &FakeCodeRepo{codes: make(map[string]verification.Code)}
}

func (r *FakeCodeRepo) Upsert(ctx context.Context, c *verification.Code) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	stored := *c
	stored.AttemptCount = 0
	r.codes[c.UserID] = stored
	return nil
}

func (r *FakeCodeRepo) Get(ctx context.Context, userID string) (*verification.Code, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.codes[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (r *FakeCodeRepo) IncrementAttempts(ctx context.Context, userID string, now time.Time) (*verification.Code, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.codes[userID]
	if !ok || !c.ExpiresAt.After(now) {
		return nil, apperrors.ErrNotFound
	}
	c.AttemptCount++
	r.codes[userID] = c
	return &c, nil
}

func (r *FakeCodeRepo) Delete(ctx context.Context, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.codes, userID)
	return nil
}

func (r *FakeCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for id, c := range r.codes {
		if !c.ExpiresAt.After(now) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}
