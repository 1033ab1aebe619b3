package signup

import (
	"context"
	"net/mail"
	"regexp"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/users"
)

// Form is a signup submission.
type Form struct {
	Email    string
	Username string
	Password string
}

// Normalized returns f with email and username trimmed and lower-cased.
func (f Form) Normalized() Form {
	return Form{
		Email:    users.Normalize(f.Email),
		Username: users.Normalize(f.Username),
		Password: f.Password,
	}
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// Rule is a synchronous field check. It returns a message when f fails.
type Rule struct {
	Field string
	Check func(f Form) (message string, ok bool)
}

// Refinement is an asynchronous check that only runs when Field passed
// every synchronous rule.
type Refinement struct {
	Field   string
	Message string
	Check   func(ctx context.Context, f Form) (bool, error)
}

// Schema validates a Form in two stages. Refinements run concurrently and a
// failing refinement never masks a store error.
type Schema struct {
	rules       []Rule
	refinements []Refinement
}

func NewSchema(rules []Rule, refinements ...Refinement) *Schema {
	return &Schema{rules: rules, refinements: refinements}
}

// DefaultRules checks email syntax, username shape and password strength.
func DefaultRules() []Rule {
	return []Rule{
		{Field: "email", Check: func(f Form) (string, bool) {
			if f.Email == "" {
				return "Email is required.", false
			}
			addr, err := mail.ParseAddress(f.Email)
			if err != nil || addr.Address != f.Email {
				return "Enter a valid email address.", false
			}
			return "", true
		}},
		{Field: "username", Check: func(f Form) (string, bool) {
			if f.Username == "" {
				return "Username is required.", false
			}
			if !usernamePattern.MatchString(f.Username) {
				return "Usernames are 3 to 30 letters, numbers, dots or underscores.", false
			}
			return "", true
		}},
		{Field: "password", Check: func(f Form) (string, bool) {
			if err := users.ValidatePasswordStrength(f.Password); err != nil {
				return err.Error(), false
			}
			return "", true
		}},
	}
}

// UniqueRefinements wires the validator into email and username refinements.
func UniqueRefinements(v *UniquenessValidator) []Refinement {
	return []Refinement{
		{Field: string(users.FieldEmail), Message: MsgEmailTaken, Check: func(ctx context.Context, f Form) (bool, error) {
			return v.IsUnique(ctx, users.FieldEmail, f.Email)
		}},
		{Field: string(users.FieldUsername), Message: MsgUsernameTaken, Check: func(ctx context.Context, f Form) (bool, error) {
			return v.IsUnique(ctx, users.FieldUsername, f.Username)
		}},
	}
}

// Validate returns nil, a *errors.ValidationError, or the first error
// raised by a refinement.
func (s *Schema) Validate(ctx context.Context, f Form) error {
	verr := &apperrors.ValidationError{}
	for _, r := range s.rules {
		if msg, ok := r.Check(f); !ok {
			verr.Add(r.Field, msg)
		}
	}

	failed := make([]bool, len(s.refinements))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range s.refinements {
		if _, bad := verr.Fields[ref.Field]; bad {
			continue
		}
		g.Go(func() error {
			ok, err := ref.Check(gctx, f)
			if err != nil {
				return err
			}
			failed[i] = !ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, ref := range s.refinements {
		if failed[i] {
			verr.Add(ref.Field, ref.Message)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
