package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// StudentRepository provides access to student records and derived
// academic standing.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student with program and curriculum context joined in.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	const query = `SELECT st.id, st.user_id, st.student_no, st.full_name, st.program_id, st.curriculum_id, st.status, st.created_at,
        p.name AS program_name, p.passing_grade, c.version AS curriculum_version
        FROM students st
        JOIN programs p ON p.id = st.program_id
        JOIN curricula c ON c.id = st.curriculum_id
        WHERE st.id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// Standing computes the student's completed-subject count and total
// completed units across all terms.
func (r *StudentRepository) Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error) {
	const query = `SELECT COUNT(*) AS completed_count, COALESCE(SUM(s.units), 0) AS completed_units
        FROM student_subjects ss
        JOIN subjects s ON s.id = ss.subject_id
        WHERE ss.student_id = $1 AND ss.status = 'completed'`
	var standing models.AcademicStanding
	if err := r.db.GetContext(ctx, &standing, query, studentID); err != nil {
		return nil, fmt.Errorf("compute standing: %w", err)
	}
	return &standing, nil
}

// SetStatus updates the student lifecycle status.
func (r *StudentRepository) SetStatus(ctx context.Context, studentID string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, studentID)
	if err != nil {
		return fmt.Errorf("set student status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("set student status: student %s not found", studentID)
	}
	return nil
}

// SetStatusTx updates the student status within the caller's transaction.
func (r *StudentRepository) SetStatusTx(ctx context.Context, tx *sqlx.Tx, studentID string, status models.StudentStatus) error {
	const query = `UPDATE students SET status = $1 WHERE id = $2`
	result, err := tx.ExecContext(ctx, query, status, studentID)
	if err != nil {
		return fmt.Errorf("set student status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("set student status: student %s not found", studentID)
	}
	return nil
}
