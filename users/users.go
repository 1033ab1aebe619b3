package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Field names a column with a uniqueness constraint.
type Field string

const (
	FieldEmail    Field = "email"
	FieldUsername Field = "username"
)

func (f Field) Valid() bool {
	return f == FieldEmail || f == FieldUsername
}

type User struct {
	ID            string    `json:"id,omitempty"`       // Unique identifier for the user
	Email         string    `json:"email,omitempty"`    // Normalized email address
	Username      string    `json:"username,omitempty"` // Normalized unique username
	PasswordHash  string    `json:"-"`                  // never serialize
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

// Public is the subset of a user that is safe to render or return from the API.
type Public struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	EmailVerified bool   `json:"emailVerified"`
}

func (u *User) Public() Public {
	return Public{ID: u.ID, Email: u.Email, Username: u.Username, EmailVerified: u.EmailVerified}
}

// Normalize trims surrounding whitespace and lower-cases v. Emails and
// usernames are stored and compared in this form.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Check(password, hash string) bool
}

// BcryptHasher is the production PasswordHasher. A zero Cost uses bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func (h BcryptHasher) Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
