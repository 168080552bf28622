package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type gradeMockRepo struct {
	existing  map[string]models.Grade
	expirable []models.IncGrade
	expired   []string

	appliedGrade  *models.Grade
	appliedStatus models.EnrollmentStatus
	appliedInc    *time.Time
}

func (m *gradeMockRepo) FindByStudentSubject(ctx context.Context, studentSubjectID string) (*models.Grade, error) {
	if g, ok := m.existing[studentSubjectID]; ok {
		return &g, nil
	}
	return nil, sql.ErrNoRows
}

func (m *gradeMockRepo) Apply(ctx context.Context, grade *models.Grade, newStatus models.EnrollmentStatus, incPostedDate *time.Time, actorID *string) error {
	m.appliedGrade = grade
	m.appliedStatus = newStatus
	m.appliedInc = incPostedDate
	return nil
}

func (m *gradeMockRepo) ListExpirableInc(ctx context.Context) ([]models.IncGrade, error) {
	return m.expirable, nil
}

func (m *gradeMockRepo) ExpireInc(ctx context.Context, gradeID, studentSubjectID string) (bool, error) {
	m.expired = append(m.expired, gradeID)
	return true, nil
}

type gradeMockLedger struct {
	rows map[string]models.StudentSubject
}

func (m *gradeMockLedger) FindByID(ctx context.Context, id string) (*models.StudentSubject, error) {
	if row, ok := m.rows[id]; ok {
		return &row, nil
	}
	return nil, sql.ErrNoRows
}

func (m *gradeMockLedger) FindDetailByID(ctx context.Context, id string) (*models.StudentSubjectDetail, error) {
	if row, ok := m.rows[id]; ok {
		return &models.StudentSubjectDetail{StudentSubject: row}, nil
	}
	return nil, sql.ErrNoRows
}

type gradeMockStudents struct {
	passingGrade float64
}

func (m *gradeMockStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	return &models.StudentDetail{
		Student:      models.Student{ID: id, Status: models.StudentStatusActive},
		PassingGrade: m.passingGrade,
	}, nil
}

type gradeMockTerms struct {
	term models.Term
}

func (m *gradeMockTerms) FindByID(ctx context.Context, id string) (*models.Term, error) {
	t := m.term
	t.ID = id
	return &t, nil
}

func (m *gradeMockTerms) FindActive(ctx context.Context) (*models.Term, error) {
	t := m.term
	return &t, nil
}

func gradeFixture(repo *gradeMockRepo, ledger *gradeMockLedger) *GradeService {
	students := &gradeMockStudents{passingGrade: 3.00}
	terms := &gradeMockTerms{term: models.Term{ID: "term-1", IsActive: true}}
	return NewGradeService(repo, ledger, students, terms, academicTestConfig(), nil, nil)
}

func enrolledLedger(status models.EnrollmentStatus) *gradeMockLedger {
	return &gradeMockLedger{rows: map[string]models.StudentSubject{
		"ss-1": {ID: "ss-1", StudentID: "student-1", SubjectID: "cs201", TermID: "term-1", Status: status},
	}}
}

func TestApplyGradeTransitions(t *testing.T) {
	cases := []struct {
		grade  string
		status models.EnrollmentStatus
	}{
		{"1.00", models.EnrollmentStatusCompleted},
		{"3.00", models.EnrollmentStatusCompleted},
		{"P", models.EnrollmentStatusCompleted},
		{"4.00", models.EnrollmentStatusRepeatRequired},
		{"5.00", models.EnrollmentStatusFailed},
		{"DRP", models.EnrollmentStatusFailed},
		{"INC", models.EnrollmentStatusInc},
	}
	for _, tc := range cases {
		t.Run(tc.grade, func(t *testing.T) {
			repo := &gradeMockRepo{}
			svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusEnrolled))

			_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
				StudentSubjectID: "ss-1",
				Value:            tc.grade,
			}, "prof-1", nil)
			require.NoError(t, err)
			assert.Equal(t, tc.status, repo.appliedStatus)
			if tc.grade == "INC" {
				assert.NotNil(t, repo.appliedInc)
			} else {
				assert.Nil(t, repo.appliedInc)
			}
		})
	}
}

func TestApplyGradeRejectsOffScaleValue(t *testing.T) {
	repo := &gradeMockRepo{}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusEnrolled))

	_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
		StudentSubjectID: "ss-1",
		Value:            "3.50",
	}, "prof-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidGrade)
}

func TestApplyGradeRejectsTerminalStates(t *testing.T) {
	repo := &gradeMockRepo{}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusCompleted))

	_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
		StudentSubjectID: "ss-1",
		Value:            "2.00",
	}, "prof-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestApplyGradeKeepsOriginalIncDate(t *testing.T) {
	original := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	repo := &gradeMockRepo{existing: map[string]models.Grade{
		"ss-1": {ID: "grade-1", StudentSubjectID: "ss-1", Value: models.GradeInc, IncPostedDate: &original},
	}}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusInc))

	_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
		StudentSubjectID: "ss-1",
		Value:            models.GradeInc,
	}, "prof-1", nil)
	require.NoError(t, err)
	require.NotNil(t, repo.appliedInc)
	assert.Equal(t, original, *repo.appliedInc)
}

func TestApplyGradeClearsIncDateOnResolution(t *testing.T) {
	original := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	repo := &gradeMockRepo{existing: map[string]models.Grade{
		"ss-1": {ID: "grade-1", StudentSubjectID: "ss-1", Value: models.GradeInc, IncPostedDate: &original},
	}}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusInc))

	_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
		StudentSubjectID: "ss-1",
		Value:            "2.50",
	}, "prof-1", nil)
	require.NoError(t, err)
	assert.Nil(t, repo.appliedInc)
	assert.Equal(t, models.EnrollmentStatusCompleted, repo.appliedStatus)
}

func TestApplyGradeRespectsEncodingWindow(t *testing.T) {
	repo := &gradeMockRepo{}
	ledger := enrolledLedger(models.EnrollmentStatusEnrolled)
	students := &gradeMockStudents{passingGrade: 3.00}
	deadline := time.Now().UTC().AddDate(0, 0, -7)
	terms := &gradeMockTerms{term: models.Term{ID: "term-1", IsActive: false, GradeEncodingDeadline: &deadline}}
	svc := NewGradeService(repo, ledger, students, terms, academicTestConfig(), nil, nil)

	_, err := svc.ApplyGrade(context.Background(), ApplyGradeRequest{
		StudentSubjectID: "ss-1",
		Value:            "2.00",
	}, "prof-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrGradeWindowClosed)
}

func TestExpireIncompletesHonorsGracePeriods(t *testing.T) {
	now := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)
	majorPosted := now.AddDate(0, 0, -240) // past the 180-day major grace
	minorPosted := now.AddDate(0, 0, -240) // inside the 365-day minor grace
	repo := &gradeMockRepo{expirable: []models.IncGrade{
		{
			Grade:       models.Grade{ID: "grade-major", StudentSubjectID: "ss-1", Value: models.GradeInc, IncPostedDate: &majorPosted},
			StudentID:   "student-1",
			SubjectCode: "CS201",
			SubjectType: models.SubjectTypeMajor,
			Status:      models.EnrollmentStatusInc,
		},
		{
			Grade:       models.Grade{ID: "grade-minor", StudentSubjectID: "ss-2", Value: models.GradeInc, IncPostedDate: &minorPosted},
			StudentID:   "student-1",
			SubjectCode: "GE4",
			SubjectType: models.SubjectTypeMinor,
			Status:      models.EnrollmentStatusInc,
		},
	}}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusInc))

	report, err := svc.ExpireIncompletes(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, []string{"grade-major"}, repo.expired)
}

func TestExpireIncompletesSkipsDeadlineDay(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	onDeadline := now.AddDate(0, 0, -180).Add(12 * time.Hour) // deadline is later today
	pastDeadline := now.AddDate(0, 0, -181)
	repo := &gradeMockRepo{expirable: []models.IncGrade{
		{
			Grade:       models.Grade{ID: "grade-on-deadline", StudentSubjectID: "ss-1", Value: models.GradeInc, IncPostedDate: &onDeadline},
			StudentID:   "student-1",
			SubjectCode: "CS201",
			SubjectType: models.SubjectTypeMajor,
			Status:      models.EnrollmentStatusInc,
		},
		{
			Grade:       models.Grade{ID: "grade-past-deadline", StudentSubjectID: "ss-2", Value: models.GradeInc, IncPostedDate: &pastDeadline},
			StudentID:   "student-1",
			SubjectCode: "CS202",
			SubjectType: models.SubjectTypeMajor,
			Status:      models.EnrollmentStatusInc,
		},
	}}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusInc))

	report, err := svc.ExpireIncompletes(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, []string{"grade-past-deadline"}, repo.expired)
}

func TestExpireIncompletesEmptySweep(t *testing.T) {
	repo := &gradeMockRepo{}
	svc := gradeFixture(repo, enrolledLedger(models.EnrollmentStatusInc))

	report, err := svc.ExpireIncompletes(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
	assert.Zero(t, report.Expired)
}
