package repopg

import (
	"context"
	"time"

	"github.com/columk1/threads-clone-sub001/internal/dbx"
	"github.com/columk1/threads-clone-sub001/verification"
)

var _ verification.Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

func (r *PostgresRepository) Upsert(ctx context.Context, c *verification.Code) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`INSERT INTO verification_codes (user_id, code_hash, expires_at, attempt_count, created_at)
		 VALUES ($1, $2, $3, 0, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET code_hash = EXCLUDED.code_hash,
		     expires_at = EXCLUDED.expires_at,
		     attempt_count = 0,
		     created_at = EXCLUDED.created_at
		 `

	_, err := r.db.ExecContext(ctx, query, c.UserID, c.CodeHash, c.ExpiresAt, c.CreatedAt)
	return dbx.MapError(err)
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*verification.Code, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`SELECT user_id, code_hash, expires_at, attempt_count, created_at FROM verification_codes
		 WHERE user_id = $1
		 `

	c := &verification.Code{}
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&c.UserID, &c.CodeHash, &c.ExpiresAt, &c.AttemptCount, &c.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return c, nil
}

// IncrementAttempts is a single conditional UPDATE so concurrent attempts
// cannot read the same counter value.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, userID string, now time.Time) (*verification.Code, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`UPDATE verification_codes SET attempt_count = attempt_count + 1
		 WHERE user_id = $1 AND expires_at > $2
		 RETURNING user_id, code_hash, expires_at, attempt_count, created_at
		 `

	c := &verification.Code{}
	err := r.db.QueryRowContext(ctx, query, userID, now).
		Scan(&c.UserID, &c.CodeHash, &c.ExpiresAt, &c.AttemptCount, &c.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE user_id = $1`, userID)
	return dbx.MapError(err)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError(err)
	}
	return n, nil
}
