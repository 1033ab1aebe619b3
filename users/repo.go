package users

import "context"

// UserRepo persists users. Implementations enforce uniqueness of the
// normalized email and username: Create returns *errors.ConflictError naming
// the colliding field, and lookups of a missing user return errors.ErrNotFound.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ExistsBy(ctx context.Context, field Field, value string) (bool, error)
	SetEmailVerified(ctx context.Context, id string) error
}
