package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newTermRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func termMockRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "name", "school_year", "term_no", "start_date", "end_date", "add_drop_deadline", "grade_encoding_deadline", "is_active", "created_at"}).
		AddRow("term-1", "1st Semester", "2026-2027", 1, now, now.AddDate(0, 4, 0), nil, nil, true, now)
}

func TestTermRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()

	repo := NewTermRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE is_active = TRUE LIMIT 1")).
		WillReturnRows(termMockRows())

	term, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, "term-1", term.ID)
	require.True(t, term.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositorySetActiveDeactivatesOthers(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()

	repo := NewTermRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = FALSE WHERE is_active = TRUE AND id <> $1")).
		WithArgs("term-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = TRUE WHERE id = $1")).
		WithArgs("term-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetActive(context.Background(), "term-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositorySetActiveUnknownTerm(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()

	repo := NewTermRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = FALSE WHERE is_active = TRUE AND id <> $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_active = TRUE WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	require.Error(t, repo.SetActive(context.Background(), "missing"))
	require.NoError(t, mock.ExpectationsWereMet())
}
