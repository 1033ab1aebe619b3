package repopg

import (
	"context"
	"time"

	"github.com/columk1/threads-clone-sub001/internal/dbx"
	"github.com/columk1/threads-clone-sub001/sessions"
)

var _ sessions.Repo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

func (r *PostgresRepository) Create(ctx context.Context, s *sessions.Session) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`INSERT INTO sessions (id, user_id, expires_at, ttl_seconds)
		 VALUES ($1, $2, $3, $4)
		 `

	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.ExpiresAt, int64(s.TTL/time.Second))
	return dbx.MapError(err)
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*sessions.Session, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`SELECT id, user_id, expires_at, ttl_seconds FROM sessions
		 WHERE id = $1
		 `

	s := &sessions.Session{}
	var ttlSeconds int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &ttlSeconds); err != nil {
		return nil, dbx.MapError(err)
	}
	s.TTL = time.Duration(ttlSeconds) * time.Second
	return s, nil
}

// UpdateExpiry only moves expires_at forward. Concurrent renewals settle on
// the latest target.
func (r *PostgresRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query :=
		`UPDATE sessions SET expires_at = GREATEST(expires_at, $2)
		 WHERE id = $1
		 `

	_, err := r.db.ExecContext(ctx, query, id, expiresAt)
	return dbx.MapError(err)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return dbx.MapError(err)
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return dbx.MapError(err)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError(err)
	}
	return n, nil
}
