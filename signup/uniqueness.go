package signup

import (
	"context"
	"fmt"

	"github.com/columk1/threads-clone-sub001/users"
)

const (
	MsgEmailTaken    = "Another account is using the same email."
	MsgUsernameTaken = "A user with that username already exists."
)

// TakenMessage is the field-scoped message shown when value is in use.
func TakenMessage(field users.Field) string {
	if field == users.FieldEmail {
		return MsgEmailTaken
	}
	return MsgUsernameTaken
}

// ExistenceChecker is the slice of users.UserRepo the validator needs.
type ExistenceChecker interface {
	ExistsBy(ctx context.Context, field users.Field, value string) (bool, error)
}

// UniquenessValidator answers whether an email or username is free. The
// answer is advisory: the store's unique constraints remain authoritative.
type UniquenessValidator struct {
	users ExistenceChecker
}

func NewUniquenessValidator(users ExistenceChecker) *UniquenessValidator {
	return &UniquenessValidator{users: users}
}

func (v *UniquenessValidator) IsUnique(ctx context.Context, field users.Field, value string) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("[IsUnique] unsupported field %q", field)
	}
	exists, err := v.users.ExistsBy(ctx, field, users.Normalize(value))
	if err != nil {
		return false, err
	}
	return !exists, nil
}
