package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// SectionRepository provides access to sections and their live occupancy.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindDetailByID returns a section with its current enrolled count.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	const query = `SELECT sec.id, sec.subject_id, sec.term_id, sec.section_code, sec.capacity, sec.professor_id, sec.status, sec.created_at,
        (SELECT COUNT(*) FROM student_subjects ss WHERE ss.section_id = sec.id AND ss.status = 'enrolled') AS enrolled_count
        FROM sections sec WHERE sec.id = $1`
	var section models.SectionDetail
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountByTerm returns the number of sections offered in a term.
func (r *SectionRepository) CountByTerm(ctx context.Context, termID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sections WHERE term_id = $1`, termID); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return count, nil
}

// ListBySubjectAndTerm returns every section offered for a subject in a
// term with live occupancy, ordered by section code for deterministic
// first-fit selection.
func (r *SectionRepository) ListBySubjectAndTerm(ctx context.Context, subjectID, termID string) ([]models.SectionDetail, error) {
	const query = `SELECT sec.id, sec.subject_id, sec.term_id, sec.section_code, sec.capacity, sec.professor_id, sec.status, sec.created_at,
        (SELECT COUNT(*) FROM student_subjects ss WHERE ss.section_id = sec.id AND ss.status = 'enrolled') AS enrolled_count
        FROM sections sec
        WHERE sec.subject_id = $1 AND sec.term_id = $2
        ORDER BY sec.section_code ASC`
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, subjectID, termID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}
