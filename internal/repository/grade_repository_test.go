package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

func newGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeRepositoryApplyInsertsNewGrade(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM grades WHERE student_subject_id = $1 FOR UPDATE")).
		WithArgs("ss-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grades")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = $1 WHERE id = $2")).
		WithArgs(models.EnrollmentStatusCompleted, "ss-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_trails")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grade := &models.Grade{
		StudentSubjectID: "ss-1",
		SubjectID:        "subject-1",
		ProfessorID:      "prof-1",
		Value:            "1.75",
	}
	require.NoError(t, repo.Apply(context.Background(), grade, models.EnrollmentStatusCompleted, nil, nil))
	require.NotEmpty(t, grade.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryApplyUpdatesExistingGrade(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	posted := time.Now().Add(-48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM grades WHERE student_subject_id = $1 FOR UPDATE")).
		WithArgs("ss-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_subject_id", "subject_id", "professor_id", "grade", "inc_posted_date", "remarks", "posted_at", "updated_at"}).
			AddRow("grade-1", "ss-1", "subject-1", "prof-1", "INC", posted, "", posted, posted))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades SET grade = $1")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = $1 WHERE id = $2")).
		WithArgs(models.EnrollmentStatusCompleted, "ss-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_trails")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grade := &models.Grade{
		StudentSubjectID: "ss-1",
		SubjectID:        "subject-1",
		ProfessorID:      "prof-1",
		Value:            "2.00",
	}
	require.NoError(t, repo.Apply(context.Background(), grade, models.EnrollmentStatusCompleted, nil, nil))
	require.Equal(t, "grade-1", grade.ID)
	require.Nil(t, grade.IncPostedDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryExpireInc(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = 'repeat_required' WHERE id = $1 AND status = 'inc'")).
		WithArgs("ss-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_trails")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	transitioned, err := repo.ExpireInc(context.Background(), "grade-1", "ss-1")
	require.NoError(t, err)
	require.True(t, transitioned)
	// Only the ledger status moves; the grade row keeps its INC value.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryExpireIncAlreadyResolved(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE student_subjects SET status = 'repeat_required' WHERE id = $1 AND status = 'inc'")).
		WithArgs("ss-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	transitioned, err := repo.ExpireInc(context.Background(), "grade-1", "ss-1")
	require.NoError(t, err)
	require.False(t, transitioned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListExpirableInc(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()

	repo := NewGradeRepository(db)
	posted := time.Now().Add(-200 * 24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "student_subject_id", "subject_id", "professor_id", "grade", "inc_posted_date", "remarks", "posted_at", "updated_at", "student_id", "subject_code", "subject_type", "status"}).
		AddRow("grade-1", "ss-1", "subject-1", "prof-1", "INC", posted, "", posted, posted, "student-1", "CS201", "major", "inc")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE g.grade = 'INC' AND ss.status = 'inc'")).
		WillReturnRows(rows)

	grades, err := repo.ListExpirableInc(context.Background())
	require.NoError(t, err)
	require.Len(t, grades, 1)
	require.Equal(t, models.SubjectTypeMajor, grades[0].SubjectType)
	require.NoError(t, mock.ExpectationsWereMet())
}
