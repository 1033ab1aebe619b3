// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, bounded store calls
// and translation of driver errors into the application error taxonomy.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return apperrors.Unavailable(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = apperrors.Unavailable(cerr)
		}
	}()

	err = fn(ctx, tx)
	return err
}

// Bounded derives a context that expires after timeout. A non-positive
// timeout leaves ctx unchanged.
func Bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// MapError translates a database/sql or pgx error:
//   - sql.ErrNoRows becomes errors.ErrNotFound
//   - a unique violation becomes *errors.ConflictError naming the column
//   - anything else (timeouts, connection failures) becomes errors.ErrStoreUnavailable
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &apperrors.ConflictError{Field: conflictField(pgErr.ConstraintName)}
	}
	return apperrors.Unavailable(err)
}

// conflictField extracts the column from a "<table>_<column>_key" constraint name.
func conflictField(constraint string) string {
	name := strings.TrimSuffix(constraint, "_key")
	if i := strings.Index(name, "_"); i >= 0 {
		return name[i+1:]
	}
	return name
}
