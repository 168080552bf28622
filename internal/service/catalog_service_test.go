package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type catalogMockRepo struct {
	program  *models.Program
	subjects map[string]models.Subject
	edges    []models.Prerequisite
	created  *models.Prerequisite
}

func (m *catalogMockRepo) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	if m.program != nil && m.program.ID == id {
		return m.program, nil
	}
	return nil, sql.ErrNoRows
}

func (m *catalogMockRepo) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

func (m *catalogMockRepo) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return nil, 0, nil
}

func (m *catalogMockRepo) GetActiveCurriculum(ctx context.Context, programID string) (*models.Curriculum, error) {
	return &models.Curriculum{ID: "curr-1", ProgramID: programID, Active: true}, nil
}

func (m *catalogMockRepo) GetPrerequisites(ctx context.Context, subjectID string) ([]models.Prerequisite, error) {
	var out []models.Prerequisite
	for _, edge := range m.edges {
		if edge.SubjectID == subjectID {
			out = append(out, edge)
		}
	}
	return out, nil
}

func (m *catalogMockRepo) ListPrerequisiteEdges(ctx context.Context) ([]models.Prerequisite, error) {
	return m.edges, nil
}

func (m *catalogMockRepo) CreatePrerequisite(ctx context.Context, prereq *models.Prerequisite) error {
	prereq.ID = "prereq-new"
	m.created = prereq
	m.edges = append(m.edges, *prereq)
	return nil
}

func (m *catalogMockRepo) GetCurriculumSubjects(ctx context.Context, curriculumID string, year, termNo int) ([]models.CurriculumSubject, error) {
	return nil, nil
}

func catalogFixture(repo *catalogMockRepo) (*CatalogService, *planMockAudits) {
	audits := &planMockAudits{}
	svc := NewCatalogService(repo, nil, audits, config.CacheConfig{}, nil, nil)
	return svc, audits
}

func chainEdges() []models.Prerequisite {
	// cs301 -> cs201 -> cs101
	return []models.Prerequisite{
		{ID: "e1", SubjectID: "cs201", PrereqSubjectID: "cs101", PrereqCode: "CS101"},
		{ID: "e2", SubjectID: "cs301", PrereqSubjectID: "cs201", PrereqCode: "CS201"},
	}
}

func catalogSubjects() map[string]models.Subject {
	return map[string]models.Subject{
		"cs101": {ID: "cs101", Code: "CS101", Units: 3, Active: true},
		"cs201": {ID: "cs201", Code: "CS201", Units: 3, Active: true},
		"cs301": {ID: "cs301", Code: "CS301", Units: 3, Active: true},
		"ge1":   {ID: "ge1", Code: "GE1", Units: 3, Active: true},
	}
}

func TestGetProgramReturnsActiveCurriculum(t *testing.T) {
	repo := &catalogMockRepo{program: &models.Program{ID: "prog-1", Name: "BSCS", PassingGrade: 3.0}}
	svc, _ := catalogFixture(repo)

	program, curriculum, err := svc.GetProgram(context.Background(), "prog-1")
	require.NoError(t, err)
	assert.Equal(t, "BSCS", program.Name)
	require.NotNil(t, curriculum)
	assert.Equal(t, "curr-1", curriculum.ID)
	assert.Equal(t, "prog-1", curriculum.ProgramID)
}

func TestGetProgramUnknownID(t *testing.T) {
	svc, _ := catalogFixture(&catalogMockRepo{})

	_, _, err := svc.GetProgram(context.Background(), "prog-missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAddPrerequisiteCreatesEdge(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects(), edges: chainEdges()}
	svc, audits := catalogFixture(repo)

	prereq, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs301",
		PrereqSubjectID: "ge1",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "prereq-new", prereq.ID)
	assert.Equal(t, "GE1", prereq.PrereqCode)
	require.Len(t, audits.entries, 1)
	assert.Equal(t, models.AuditActionAddPrerequisite, audits.entries[0].Action)
}

func TestAddPrerequisiteRejectsDirectCycle(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects(), edges: chainEdges()}
	svc, _ := catalogFixture(repo)

	// cs101 -> cs301 would close the chain into a loop.
	_, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs101",
		PrereqSubjectID: "cs301",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Nil(t, repo.created)
}

func TestAddPrerequisiteRejectsTransitiveCycle(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects(), edges: chainEdges()}
	svc, _ := catalogFixture(repo)

	// cs101 -> cs201 reaches cs101 through the existing cs201 -> cs101 edge.
	_, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs101",
		PrereqSubjectID: "cs201",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAddPrerequisiteRejectsSelfEdge(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects()}
	svc, _ := catalogFixture(repo)

	_, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs101",
		PrereqSubjectID: "cs101",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAddPrerequisiteRejectsDuplicateEdge(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects(), edges: chainEdges()}
	svc, _ := catalogFixture(repo)

	_, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs201",
		PrereqSubjectID: "cs101",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAddPrerequisiteUnknownSubject(t *testing.T) {
	repo := &catalogMockRepo{subjects: catalogSubjects()}
	svc, _ := catalogFixture(repo)

	_, err := svc.AddPrerequisite(context.Background(), AddPrerequisiteRequest{
		SubjectID:       "cs999",
		PrereqSubjectID: "cs101",
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
