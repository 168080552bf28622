package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/repository"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type enrollMockRepo struct {
	rows        map[string]models.StudentSubject
	enrollErrs  []error
	enrollCalls int
	dropped     []string
}

func (m *enrollMockRepo) List(ctx context.Context, filter models.StudentSubjectFilter) ([]models.StudentSubjectDetail, int, error) {
	return nil, 0, nil
}

func (m *enrollMockRepo) FindByID(ctx context.Context, id string) (*models.StudentSubject, error) {
	if row, ok := m.rows[id]; ok {
		return &row, nil
	}
	return nil, sql.ErrNoRows
}

func (m *enrollMockRepo) FindDetailByID(ctx context.Context, id string) (*models.StudentSubjectDetail, error) {
	if row, ok := m.rows[id]; ok {
		return &models.StudentSubjectDetail{StudentSubject: row}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *enrollMockRepo) Enroll(ctx context.Context, enrollment *models.StudentSubject, actorID *string) error {
	call := m.enrollCalls
	m.enrollCalls++
	if call < len(m.enrollErrs) && m.enrollErrs[call] != nil {
		return m.enrollErrs[call]
	}
	if m.rows == nil {
		m.rows = make(map[string]models.StudentSubject)
	}
	enrollment.ID = "ss-new"
	enrollment.Status = models.EnrollmentStatusEnrolled
	m.rows[enrollment.ID] = *enrollment
	return nil
}

func (m *enrollMockRepo) Delete(ctx context.Context, id string, actorID *string) error {
	m.dropped = append(m.dropped, id)
	delete(m.rows, id)
	return nil
}

type enrollMockSubjects struct {
	subjects map[string]models.Subject
}

func (m *enrollMockSubjects) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

type enrollMockSections struct {
	sections map[string]models.SectionDetail
}

func (m *enrollMockSections) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if section, ok := m.sections[id]; ok {
		return &section, nil
	}
	return nil, sql.ErrNoRows
}

func enrollmentFixture(repo *enrollMockRepo, terms *gradeMockTerms) *EnrollmentService {
	students := &planMockStudents{student: models.StudentDetail{
		Student:      models.Student{ID: "student-1", CurriculumID: "curr-1", Status: models.StudentStatusActive},
		PassingGrade: 3.00,
	}}
	subjects := &enrollMockSubjects{subjects: map[string]models.Subject{
		"cs201": {ID: "cs201", Code: "CS201", Units: 3, Type: models.SubjectTypeMajor, Active: true},
	}}
	sections := &enrollMockSections{sections: map[string]models.SectionDetail{
		"sec-1": {Section: models.Section{ID: "sec-1", SubjectID: "cs201", TermID: "term-1", SectionCode: "A", Capacity: 40, Status: models.SectionStatusOpen, ProfessorID: "prof-1"}},
	}}
	if terms == nil {
		terms = &gradeMockTerms{term: models.Term{ID: "term-1", TermNo: 1, IsActive: true, EndDate: time.Now().AddDate(0, 2, 0)}}
	}
	return NewEnrollmentService(repo, students, subjects, sections, terms, &planMockEligibility{}, academicTestConfig(), nil, nil)
}

func TestEnrollHappyPath(t *testing.T) {
	repo := &enrollMockRepo{}
	svc := enrollmentFixture(repo, nil)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "student-1",
		SubjectID: "cs201",
		SectionID: "sec-1",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ss-new", detail.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, detail.Status)
	assert.Equal(t, "prof-1", detail.ProfessorID)
	assert.Equal(t, 1, repo.enrollCalls)
}

func TestEnrollRetriesOnSerializationConflict(t *testing.T) {
	repo := &enrollMockRepo{enrollErrs: []error{
		repository.ErrConcurrentModification,
		repository.ErrConcurrentModification,
		nil,
	}}
	svc := enrollmentFixture(repo, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "student-1",
		SubjectID: "cs201",
		SectionID: "sec-1",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.enrollCalls)
}

func TestEnrollGivesUpAfterRetryBudget(t *testing.T) {
	repo := &enrollMockRepo{enrollErrs: []error{
		repository.ErrConcurrentModification,
		repository.ErrConcurrentModification,
		repository.ErrConcurrentModification,
		nil,
	}}
	svc := enrollmentFixture(repo, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "student-1",
		SubjectID: "cs201",
		SectionID: "sec-1",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConcurrentModification)
	assert.Equal(t, 3, repo.enrollCalls)
}

func TestEnrollMapsSectionFull(t *testing.T) {
	repo := &enrollMockRepo{enrollErrs: []error{repository.ErrSectionFull}}
	svc := enrollmentFixture(repo, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "student-1",
		SubjectID: "cs201",
		SectionID: "sec-1",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrSectionFull)
	assert.Equal(t, 1, repo.enrollCalls)
}

func TestEnrollRejectsClosedWindow(t *testing.T) {
	repo := &enrollMockRepo{}
	deadline := time.Now().UTC().AddDate(0, 0, -3)
	terms := &gradeMockTerms{term: models.Term{ID: "term-1", IsActive: true, AddDropDeadline: &deadline, EndDate: time.Now().AddDate(0, 2, 0)}}
	svc := enrollmentFixture(repo, terms)

	_, err := svc.Enroll(context.Background(), EnrollRequest{
		StudentID: "student-1",
		SubjectID: "cs201",
		SectionID: "sec-1",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentWindowClosed)
	assert.Zero(t, repo.enrollCalls)
}

func TestDropRemovesEnrolledRow(t *testing.T) {
	repo := &enrollMockRepo{rows: map[string]models.StudentSubject{
		"ss-1": {ID: "ss-1", StudentID: "student-1", SubjectID: "cs201", TermID: "term-1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := enrollmentFixture(repo, nil)

	require.NoError(t, svc.Drop(context.Background(), "ss-1", nil))
	assert.Equal(t, []string{"ss-1"}, repo.dropped)
}

func TestDropRejectsGradedRow(t *testing.T) {
	repo := &enrollMockRepo{rows: map[string]models.StudentSubject{
		"ss-1": {ID: "ss-1", StudentID: "student-1", SubjectID: "cs201", TermID: "term-1", Status: models.EnrollmentStatusCompleted},
	}}
	svc := enrollmentFixture(repo, nil)

	err := svc.Drop(context.Background(), "ss-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
	assert.Empty(t, repo.dropped)
}
