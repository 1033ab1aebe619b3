package repopg

import (
	"context"
	"fmt"
	"time"

	"github.com/columk1/threads-clone-sub001/internal/dbx"
	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/users"
	"github.com/google/uuid"
)

var _ users.UserRepo = (*PostgresRepository)(nil)

type PostgresRepository struct {
	db      dbx.DBTX
	timeout time.Duration
}

func NewPostgresRepository(db dbx.DBTX, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, timeout: timeout}
}

const selectUser = `SELECT id, email, username, password_hash, email_verified, created_at FROM users`

func (r *PostgresRepository) Create(ctx context.Context, user *users.User) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query :=
		`INSERT INTO users (id, email, username, password_hash, email_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.EmailVerified).Scan(&user.CreatedAt)
	if err != nil {
		return dbx.MapError(err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return r.getBy(ctx, "username", username)
}

// getBy is only called with fixed column names.
func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*users.User, error) {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query := selectUser + ` WHERE ` + column + ` = $1`

	u := &users.User{}
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) ExistsBy(ctx context.Context, field users.Field, value string) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("unknown field %q", field)
	}
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	query := `SELECT EXISTS (SELECT 1 FROM users WHERE ` + string(field) + ` = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, dbx.MapError(err)
	}
	return exists, nil
}

func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string) error {
	ctx, cancel := dbx.Bounded(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE users SET email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.MapError(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
