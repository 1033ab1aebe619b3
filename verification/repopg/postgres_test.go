package repopg

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/columk1/threads-clone-sub001/internal/errors"
	"github.com/columk1/threads-clone-sub001/verification"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db, time.Second), mock
}

var codeCols = []string{"user_id", "code_hash", "expires_at", "attempt_count", "created_at"}

func TestUpsertResetsAttempts(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(5 * time.Minute)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+verification_codes.*ON\s+CONFLICT\s+\(user_id\)\s+DO\s+UPDATE.*attempt_count\s*=\s*0`).
		WithArgs("u-1", "hash", exp, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &verification.Code{UserID: "u-1", CodeHash: "hash", ExpiresAt: exp, CreatedAt: now})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttempts(t *testing.T) {
	q := `(?s)^UPDATE\s+verification_codes\s+SET\s+attempt_count\s*=\s*attempt_count\s*\+\s*1\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2\s+RETURNING`
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active code", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("u-1", now).
			WillReturnRows(sqlmock.NewRows(codeCols).AddRow("u-1", "hash", now.Add(time.Minute), 3, now))

		c, err := repo.IncrementAttempts(context.Background(), "u-1", now)
		require.NoError(t, err)
		require.Equal(t, 3, c.AttemptCount)
	})

	t.Run("missing or expired", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(q).WithArgs("u-1", now).WillReturnError(sql.ErrNoRows)

		_, err := repo.IncrementAttempts(context.Background(), "u-1", now)
		require.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestGetAndDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^SELECT\s+user_id,\s*code_hash,\s*expires_at,\s*attempt_count,\s*created_at\s+FROM\s+verification_codes\s+WHERE\s+user_id\s*=\s*\$1\s*$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(codeCols).AddRow("u-1", "hash", now, 0, now))
	mock.ExpectExec(`^DELETE FROM verification_codes WHERE user_id = \$1$`).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE FROM verification_codes WHERE expires_at <= \$1$`).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 4))

	c, err := repo.Get(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, "hash", c.CodeHash)
	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
}
