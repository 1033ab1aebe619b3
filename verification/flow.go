package verification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
)

const (
	CodeLength         = 6
	DefaultCodeTTL     = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// Flow drives a user from Unverified through CodeIssued to Verified.
type Flow struct {
	codes       Repo
	users       UserVerifier
	limiter     ResendLimiter
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	generate    func() (string, error)
}

type Option func(*Flow)

func WithNowTime(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// WithCodeGenerator replaces the random code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(f *Flow) {
		f.generate = gen
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(f *Flow) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

func NewFlow(codes Repo, users UserVerifier, limiter ResendLimiter, opts ...Option) (*Flow, error) {
	if codes == nil {
		return nil, errors.New("[NewFlow] code repo is required")
	}
	if users == nil {
		return nil, errors.New("[NewFlow] user verifier is required")
	}
	if limiter == nil {
		return nil, errors.New("[NewFlow] resend limiter is required")
	}
	f := &Flow{
		codes:       codes,
		users:       users,
		limiter:     limiter,
		ttl:         DefaultCodeTTL,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		generate:    GenerateCode,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Flow) CodeTTL() time.Duration {
	return f.ttl
}

// IssueCode stores a new code for userID, replacing any previous one, and
// returns the plaintext for delivery. It also opens the resend window.
func (f *Flow) IssueCode(ctx context.Context, userID string) (string, error) {
	code, err := f.generate()
	if err != nil {
		return "", errors.Wrap(err, "[IssueCode] generate code")
	}
	now := f.now().UTC()
	c := &Code{
		UserID:    userID,
		CodeHash:  HashCode(userID, code),
		ExpiresAt: now.Add(f.ttl),
		CreatedAt: now,
	}
	if err := f.codes.Upsert(ctx, c); err != nil {
		return "", apperrors.Wrapf(err, "[IssueCode] user %s", userID)
	}

	if err := f.limiter.Reserve(ctx, userID); err != nil && !errors.Is(err, apperrors.ErrRateLimited) {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not open resend window")
	}
	return code, nil
}

// ResendCode issues a fresh code unless one was issued for userID within
// the limiter's interval, in which case errors.ErrRateLimited is returned
// and the stored code is left alone. A window claimed for a code that could
// not be issued is released again.
func (f *Flow) ResendCode(ctx context.Context, userID string) (string, error) {
	if err := f.limiter.Reserve(ctx, userID); err != nil {
		return "", apperrors.Wrapf(err, "[ResendCode] user %s", userID)
	}
	code, err := f.IssueCode(ctx, userID)
	if err != nil {
		if relErr := f.limiter.Release(ctx, userID); relErr != nil {
			log.Warn().Err(relErr).Str("user_id", userID).Msg("could not release resend window")
		}
		return "", err
	}
	return code, nil
}

// Verify checks submitted against the user's active code. The attempt is
// counted before the comparison. Returned conditions:
//   - errors.ErrCodeInvalid for malformed input or a wrong code
//   - errors.ErrCodeNotFound when no code was issued
//   - errors.ErrCodeExpired when the code is past its expiry
//   - errors.ErrRateLimited when the attempt ceiling is exceeded; the code is discarded
func (f *Flow) Verify(ctx context.Context, userID, submitted string) error {
	submitted = strings.TrimSpace(submitted)
	if !wellFormed(submitted) {
		return apperrors.ErrCodeInvalid
	}

	now := f.now()
	c, err := f.codes.IncrementAttempts(ctx, userID, now)
	if errors.Is(err, apperrors.ErrNotFound) {
		return f.missingCode(ctx, userID, now)
	}
	if err != nil {
		return apperrors.Wrapf(err, "[Verify] count attempt")
	}

	if c.AttemptCount > f.maxAttempts {
		if err := f.codes.Delete(ctx, userID); err != nil {
			return apperrors.Wrapf(err, "[Verify] discard exhausted code")
		}
		return apperrors.ErrRateLimited
	}

	want := []byte(c.CodeHash)
	got := []byte(HashCode(userID, submitted))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		return apperrors.ErrCodeInvalid
	}

	if err := f.users.SetEmailVerified(ctx, userID); err != nil {
		return apperrors.Wrapf(err, "[Verify] mark user %s verified", userID)
	}
	if err := f.codes.Delete(ctx, userID); err != nil {
		return apperrors.Wrapf(err, "[Verify] consume code")
	}
	return nil
}

// DeleteExpired removes expired codes. Verify never accepts them, so this
// only reclaims storage.
func (f *Flow) DeleteExpired(ctx context.Context) (int64, error) {
	return f.codes.DeleteExpired(ctx, f.now())
}

func (f *Flow) missingCode(ctx context.Context, userID string, now time.Time) error {
	c, err := f.codes.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.ErrCodeNotFound
	}
	if err != nil {
		return apperrors.Wrapf(err, "[Verify] load code")
	}
	if !c.ExpiresAt.After(now) {
		return apperrors.ErrCodeExpired
	}
	// replaced by a concurrent resend between the two reads
	return apperrors.ErrCodeInvalid
}

// HashCode is the stored digest of a code. Binding the user id keeps equal
// codes for different users from sharing a hash.
func HashCode(userID, code string) string {
	sum := sha256.Sum256([]byte(userID + ":" + code))
	return hex.EncodeToString(sum[:])
}

// GenerateCode returns a uniformly random CodeLength-digit code.
func GenerateCode() (string, error) {
	upper := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func wellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
