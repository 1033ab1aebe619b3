package fakeuserrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory UserRepo. The email and username indexes are
// checked and written under one lock so concurrent Creates cannot both win.
type FakeUserRepo struct {
	users       map[string]*users.User
	emailIds    map[string]string // email to user id
	usernameIds map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		emailIds:    make(map[string]string),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(ctx context.Context, user *users.User) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[user.Email]; ok {
		return &apperrors.ConflictError{Field: string(users.FieldEmail)}
	}
	if _, ok := ur.usernameIds[user.Username]; ok {
		return &apperrors.ConflictError{Field: string(users.FieldUsername)}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	ur.usernameIds[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.copyOf(id)
}

func (ur *FakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.copyOf(ur.emailIds[email])
}

func (ur *FakeUserRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.copyOf(ur.usernameIds[username])
}

func (ur *FakeUserRepo) ExistsBy(ctx context.Context, field users.Field, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Unavailable(err)
	}
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	switch field {
	case users.FieldEmail:
		_, ok := ur.emailIds[value]
		return ok, nil
	case users.FieldUsername:
		_, ok := ur.usernameIds[value]
		return ok, nil
	default:
		return false, fmt.Errorf("unknown field %q", field)
	}
}

func (ur *FakeUserRepo) SetEmailVerified(ctx context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

// Delete removes a user. Used by tests to simulate an account vanishing
// while its sessions remain.
func (ur *FakeUserRepo) Delete(id string) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return
	}
	delete(ur.emailIds, u.Email)
	delete(ur.usernameIds, u.Username)
	delete(ur.users, id)
}

func (ur *FakeUserRepo) copyOf(id string) (*users.User, error) {
	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
