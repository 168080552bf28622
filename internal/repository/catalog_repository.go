package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// CatalogRepository provides read access to programs, curricula, subjects
// and the prerequisite graph. Catalog data is read-mostly; only
// prerequisite authoring writes through this repository.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetProgram returns a program by ID.
func (r *CatalogRepository) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, level, passing_grade, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// GetSubject returns a subject by ID.
func (r *CatalogRepository) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, program_id, code, title, units, type, active, created_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListSubjects returns subjects filtered by the provided criteria.
func (r *CatalogRepository) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	query := `SELECT id, program_id, code, title, units, type, active, created_at FROM subjects WHERE active = TRUE`
	countQuery := `SELECT COUNT(*) FROM subjects WHERE active = TRUE`
	var args []interface{}

	if filter.ProgramID != "" {
		cond := fmt.Sprintf(" AND program_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.ProgramID)
	}
	if filter.Type != "" {
		cond := fmt.Sprintf(" AND type = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.Type)
	}
	if filter.Search != "" {
		cond := fmt.Sprintf(" AND (code ILIKE $%d OR title ILIKE $%d)", len(args)+1, len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, "%"+filter.Search+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query += fmt.Sprintf(" ORDER BY code ASC LIMIT %d OFFSET %d", size, (page-1)*size)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// GetActiveCurriculum returns the single active curriculum for a program.
func (r *CatalogRepository) GetActiveCurriculum(ctx context.Context, programID string) (*models.Curriculum, error) {
	const query = `SELECT id, program_id, version, effective_sy, active, created_at
        FROM curricula WHERE program_id = $1 AND active = TRUE
        ORDER BY created_at DESC LIMIT 1`
	var curriculum models.Curriculum
	if err := r.db.GetContext(ctx, &curriculum, query, programID); err != nil {
		return nil, err
	}
	return &curriculum, nil
}

// GetPrerequisites returns the prerequisite edges for a subject.
func (r *CatalogRepository) GetPrerequisites(ctx context.Context, subjectID string) ([]models.Prerequisite, error) {
	const query = `SELECT p.id, p.subject_id, p.prereq_subject_id, s.code AS prereq_code
        FROM prerequisites p
        JOIN subjects s ON s.id = p.prereq_subject_id
        WHERE p.subject_id = $1
        ORDER BY s.code ASC`
	var prereqs []models.Prerequisite
	if err := r.db.SelectContext(ctx, &prereqs, query, subjectID); err != nil {
		return nil, fmt.Errorf("get prerequisites: %w", err)
	}
	return prereqs, nil
}

// ListPrerequisiteEdges returns every edge in the prerequisite graph.
// Used by authoring-time cycle validation.
func (r *CatalogRepository) ListPrerequisiteEdges(ctx context.Context) ([]models.Prerequisite, error) {
	const query = `SELECT p.id, p.subject_id, p.prereq_subject_id, s.code AS prereq_code
        FROM prerequisites p
        JOIN subjects s ON s.id = p.prereq_subject_id`
	var edges []models.Prerequisite
	if err := r.db.SelectContext(ctx, &edges, query); err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}
	return edges, nil
}

// CreatePrerequisite persists a new prerequisite edge.
func (r *CatalogRepository) CreatePrerequisite(ctx context.Context, prereq *models.Prerequisite) error {
	if prereq.ID == "" {
		prereq.ID = uuid.NewString()
	}
	const query = `INSERT INTO prerequisites (id, subject_id, prereq_subject_id) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, prereq.ID, prereq.SubjectID, prereq.PrereqSubjectID); err != nil {
		return fmt.Errorf("create prerequisite: %w", err)
	}
	return nil
}

// GetCurriculumSubjects returns the recommended plan slots for a curriculum
// at (year, termNo), ordered by subject code for deterministic planning.
func (r *CatalogRepository) GetCurriculumSubjects(ctx context.Context, curriculumID string, year, termNo int) ([]models.CurriculumSubject, error) {
	const query = `SELECT cs.id, cs.curriculum_id, cs.subject_id, cs.year_level, cs.term_no, cs.is_recommended, cs.created_at,
        s.code AS subject_code, s.title AS subject_title, s.units AS subject_units, s.type AS subject_type
        FROM curriculum_subjects cs
        JOIN subjects s ON s.id = cs.subject_id
        WHERE cs.curriculum_id = $1 AND cs.year_level = $2 AND cs.term_no = $3 AND cs.is_recommended = TRUE
        ORDER BY s.code ASC`
	var subjects []models.CurriculumSubject
	if err := r.db.SelectContext(ctx, &subjects, query, curriculumID, year, termNo); err != nil {
		return nil, fmt.Errorf("get curriculum subjects: %w", err)
	}
	return subjects, nil
}
