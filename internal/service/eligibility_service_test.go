package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
)

type mockEligibilityLedger struct {
	enrolled  map[string]bool
	completed map[string]bool
	passed    map[string]bool
	units     float64
}

func (m *mockEligibilityLedger) ExistsForTerm(ctx context.Context, studentID, subjectID, termID string) (bool, error) {
	return m.enrolled[subjectID], nil
}

func (m *mockEligibilityLedger) HasCompleted(ctx context.Context, studentID, subjectID string) (bool, error) {
	return m.completed[subjectID], nil
}

func (m *mockEligibilityLedger) PassedSubject(ctx context.Context, studentID, subjectID string, passingGrade float64) (bool, error) {
	return m.passed[subjectID], nil
}

func (m *mockEligibilityLedger) EnrolledUnits(ctx context.Context, studentID, termID string) (float64, error) {
	return m.units, nil
}

type mockPrereqReader struct {
	prereqs map[string][]models.Prerequisite
}

func (m *mockPrereqReader) GetPrerequisites(ctx context.Context, subjectID string) ([]models.Prerequisite, error) {
	return m.prereqs[subjectID], nil
}

type mockStandingReader struct {
	standing models.AcademicStanding
}

func (m *mockStandingReader) Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error) {
	s := m.standing
	return &s, nil
}

func academicTestConfig() config.AcademicConfig {
	return config.AcademicConfig{
		FreshmanUnitCap:     30,
		DefaultPassingGrade: 3.00,
		MajorIncGraceDays:   180,
		MinorIncGraceDays:   365,
		UnitsPerYearLevel:   30,
		MaxYearLevel:        4,
		EnrollRetryAttempts: 3,
	}
}

func eligibilityFixture(ledger *mockEligibilityLedger, prereqs *mockPrereqReader, standing *mockStandingReader) *EligibilityService {
	if ledger == nil {
		ledger = &mockEligibilityLedger{}
	}
	if prereqs == nil {
		prereqs = &mockPrereqReader{}
	}
	if standing == nil {
		standing = &mockStandingReader{standing: models.AcademicStanding{CompletedCount: 12, CompletedUnits: 36}}
	}
	return NewEligibilityService(ledger, prereqs, standing, academicTestConfig(), nil)
}

func eligibilityStudent() *models.StudentDetail {
	return &models.StudentDetail{
		Student:      models.Student{ID: "student-1", Status: models.StudentStatusActive},
		PassingGrade: 3.00,
	}
}

func TestEligibilityAllowed(t *testing.T) {
	svc := eligibilityFixture(nil, nil, nil)
	subject := &models.Subject{ID: "cs201", Code: "CS201", Units: 3, Type: models.SubjectTypeMajor}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Empty(t, result.Cause)
}

func TestEligibilityAlreadyEnrolled(t *testing.T) {
	ledger := &mockEligibilityLedger{enrolled: map[string]bool{"cs201": true}}
	svc := eligibilityFixture(ledger, nil, nil)
	subject := &models.Subject{ID: "cs201", Code: "CS201", Units: 3}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, models.EligibilityAlreadyEnrolled, result.Cause)
}

func TestEligibilityAlreadyCompleted(t *testing.T) {
	ledger := &mockEligibilityLedger{completed: map[string]bool{"cs201": true}}
	svc := eligibilityFixture(ledger, nil, nil)
	subject := &models.Subject{ID: "cs201", Code: "CS201", Units: 3}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityAlreadyCompleted, result.Cause)
}

func TestEligibilityReportsEveryMissingPrerequisite(t *testing.T) {
	ledger := &mockEligibilityLedger{passed: map[string]bool{"cs101": true}}
	prereqs := &mockPrereqReader{prereqs: map[string][]models.Prerequisite{
		"cs201": {
			{SubjectID: "cs201", PrereqSubjectID: "cs101", PrereqCode: "CS101"},
			{SubjectID: "cs201", PrereqSubjectID: "cs102", PrereqCode: "CS102"},
			{SubjectID: "cs201", PrereqSubjectID: "math101", PrereqCode: "MATH101"},
		},
	}}
	svc := eligibilityFixture(ledger, prereqs, nil)
	subject := &models.Subject{ID: "cs201", Code: "CS201", Units: 3}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityPrerequisitesNotMet, result.Cause)
	assert.Equal(t, []string{"CS102", "MATH101"}, result.MissingPrerequisites)
}

func TestEligibilityFreshmanUnitCap(t *testing.T) {
	ledger := &mockEligibilityLedger{units: 28}
	standing := &mockStandingReader{standing: models.AcademicStanding{}}
	svc := eligibilityFixture(ledger, nil, standing)
	subject := &models.Subject{ID: "cs101", Code: "CS101", Units: 3}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.Equal(t, models.EligibilityUnitCapExceeded, result.Cause)
	assert.Equal(t, 28.0, result.CurrentUnits)
	assert.Equal(t, 3.0, result.AddingUnits)
	assert.Equal(t, 30.0, result.UnitCap)
}

func TestEligibilityUnitCapIgnoredForUpperYears(t *testing.T) {
	ledger := &mockEligibilityLedger{units: 28}
	svc := eligibilityFixture(ledger, nil, nil)
	subject := &models.Subject{ID: "cs401", Code: "CS401", Units: 3}

	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, nil, "term-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestEligibilitySectionChecks(t *testing.T) {
	svc := eligibilityFixture(nil, nil, nil)
	subject := &models.Subject{ID: "cs201", Code: "CS201", Units: 3}

	closed := &models.SectionDetail{Section: models.Section{Status: models.SectionStatusClosed, Capacity: 40}}
	result, err := svc.CanEnroll(context.Background(), eligibilityStudent(), subject, closed, "term-1")
	require.NoError(t, err)
	assert.Equal(t, models.EligibilitySectionNotOpen, result.Cause)

	full := &models.SectionDetail{Section: models.Section{Status: models.SectionStatusOpen, Capacity: 40}, EnrolledCount: 40}
	result, err = svc.CanEnroll(context.Background(), eligibilityStudent(), subject, full, "term-1")
	require.NoError(t, err)
	assert.Equal(t, models.EligibilitySectionFull, result.Cause)

	open := &models.SectionDetail{Section: models.Section{Status: models.SectionStatusOpen, Capacity: 40}, EnrolledCount: 39}
	result, err = svc.CanEnroll(context.Background(), eligibilityStudent(), subject, open, "term-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
