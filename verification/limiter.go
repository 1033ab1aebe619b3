package verification

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
)

const DefaultResendInterval = time.Minute

// ResendLimiter enforces a minimum interval between code issuances for a
// user. Reserve returns errors.ErrRateLimited when the window is still open.
// Release gives back a window whose code was never issued.
type ResendLimiter interface {
	Reserve(ctx context.Context, userID string) error
	Release(ctx context.Context, userID string) error
}

// RedisResendLimiter claims the window with SET NX PX so concurrent resends
// across instances admit exactly one.
type RedisResendLimiter struct {
	redis    *redis.Client
	prefix   string
	interval time.Duration
}

func NewRedisResendLimiter(client *redis.Client, prefix string, interval time.Duration) *RedisResendLimiter {
	if interval <= 0 {
		interval = DefaultResendInterval
	}
	if prefix == "" {
		prefix = "otp:resend:"
	}
	return &RedisResendLimiter{redis: client, prefix: prefix, interval: interval}
}

func (l *RedisResendLimiter) Reserve(ctx context.Context, userID string) error {
	ok, err := l.redis.SetNX(ctx, l.prefix+userID, 1, l.interval).Result()
	if err != nil {
		return apperrors.Unavailable(err)
	}
	if !ok {
		return apperrors.ErrRateLimited
	}
	return nil
}

func (l *RedisResendLimiter) Release(ctx context.Context, userID string) error {
	if err := l.redis.Del(ctx, l.prefix+userID).Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	return nil
}

// StoreResendLimiter derives the window from the stored code's CreatedAt.
// It needs no extra infrastructure, but two concurrent resends may both pass.
type StoreResendLimiter struct {
	codes    Repo
	interval time.Duration
	now      func() time.Time
}

func NewStoreResendLimiter(codes Repo, interval time.Duration, now func() time.Time) *StoreResendLimiter {
	if interval <= 0 {
		interval = DefaultResendInterval
	}
	if now == nil {
		now = time.Now
	}
	return &StoreResendLimiter{codes: codes, interval: interval, now: now}
}

func (l *StoreResendLimiter) Reserve(ctx context.Context, userID string) error {
	c, err := l.codes.Get(ctx, userID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if l.now().Before(c.CreatedAt.Add(l.interval)) {
		return apperrors.ErrRateLimited
	}
	return nil
}

// Release is a no-op: the window only exists once a code row is written.
func (l *StoreResendLimiter) Release(ctx context.Context, userID string) error {
	return nil
}
