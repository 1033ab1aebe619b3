package signup

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/users"
)

// Service registers new accounts.
type Service struct {
	schema *Schema
	users  users.UserRepo
	hasher users.PasswordHasher
}

func NewService(repo users.UserRepo, hasher users.PasswordHasher) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[signup.NewService] user repo is required")
	}
	if hasher == nil {
		return nil, errors.New("[signup.NewService] password hasher is required")
	}
	validator := NewUniquenessValidator(repo)
	return &Service{
		schema: NewSchema(DefaultRules(), UniqueRefinements(validator)...),
		users:  repo,
		hasher: hasher,
	}, nil
}

// Register validates form and creates an unverified user. Validation
// failures, including a uniqueness conflict raised by the store at insert
// time, come back as *errors.ValidationError.
func (s *Service) Register(ctx context.Context, form Form) (*users.User, error) {
	form = form.Normalized()
	if err := s.schema.Validate(ctx, form); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[Register] hash password")
	}

	user := &users.User{
		Email:        form.Email,
		Username:     form.Username,
		PasswordHash: hash,
	}
	err = s.users.Create(ctx, user)
	var conflict *apperrors.ConflictError
	if errors.As(err, &conflict) {
		field := users.Field(conflict.Field)
		log.Info().Str("field", conflict.Field).Msg("signup lost uniqueness race at insert")
		return nil, apperrors.NewValidationError(string(field), TakenMessage(field))
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Register] create user")
	}
	return user, nil
}
