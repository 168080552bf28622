package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// GradeRepository persists grades and drives their paired ledger status
// transitions. A grade write and its status change always share one
// transaction.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// FindByStudentSubject returns the grade attached to a ledger row, or
// sql.ErrNoRows when none has been posted.
func (r *GradeRepository) FindByStudentSubject(ctx context.Context, studentSubjectID string) (*models.Grade, error) {
	const query = `SELECT id, student_subject_id, subject_id, professor_id, grade, inc_posted_date, remarks, posted_at, updated_at
        FROM grades WHERE student_subject_id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, studentSubjectID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Apply upserts the grade and moves the ledger row to newStatus in one
// transaction. incPostedDate is only written when non-nil; passing nil
// clears any previous incomplete marker.
func (r *GradeRepository) Apply(ctx context.Context, grade *models.Grade, newStatus models.EnrollmentStatus, incPostedDate *time.Time, actorID *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var previous models.Grade
	err = tx.GetContext(ctx, &previous,
		`SELECT id, student_subject_id, subject_id, professor_id, grade, inc_posted_date, remarks, posted_at, updated_at
         FROM grades WHERE student_subject_id = $1 FOR UPDATE`, grade.StudentSubjectID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = nil
		grade.ID = uuid.NewString()
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO grades (id, student_subject_id, subject_id, professor_id, grade, inc_posted_date, remarks)
             VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			grade.ID, grade.StudentSubjectID, grade.SubjectID, grade.ProfessorID,
			grade.Value, incPostedDate, grade.Remarks); err != nil {
			return fmt.Errorf("insert grade: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find grade: %w", err)
	default:
		grade.ID = previous.ID
		if _, err = tx.ExecContext(ctx,
			`UPDATE grades SET grade = $1, inc_posted_date = $2, remarks = $3, professor_id = $4, updated_at = NOW()
             WHERE id = $5`,
			grade.Value, incPostedDate, grade.Remarks, grade.ProfessorID, grade.ID); err != nil {
			return fmt.Errorf("update grade: %w", err)
		}
	}
	grade.IncPostedDate = incPostedDate

	res, err := tx.ExecContext(ctx,
		`UPDATE student_subjects SET status = $1 WHERE id = $2`, newStatus, grade.StudentSubjectID)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		err = fmt.Errorf("update enrollment status: row %s not found", grade.StudentSubjectID)
		return err
	}

	oldPayload, _ := json.Marshal(previous)
	newPayload, _ := json.Marshal(grade)
	if previous.ID == "" {
		oldPayload = nil
	}
	if err = insertAuditTx(ctx, tx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionPostGrade,
		Entity:    "grades",
		EntityID:  grade.ID,
		OldValues: oldPayload,
		NewValues: newPayload,
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListExpirableInc returns INC grades whose ledger row is still in the
// incomplete state, joined with the subject type needed to pick the
// applicable grace period.
func (r *GradeRepository) ListExpirableInc(ctx context.Context) ([]models.IncGrade, error) {
	const query = `SELECT g.id, g.student_subject_id, g.subject_id, g.professor_id, g.grade, g.inc_posted_date, g.remarks, g.posted_at, g.updated_at,
        ss.student_id, s.code AS subject_code, s.type AS subject_type, ss.status
        FROM grades g
        JOIN student_subjects ss ON ss.id = g.student_subject_id
        JOIN subjects s ON s.id = g.subject_id
        WHERE g.grade = 'INC' AND ss.status = 'inc' AND g.inc_posted_date IS NOT NULL`
	var grades []models.IncGrade
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list expirable incompletes: %w", err)
	}
	return grades, nil
}

// ExpireInc moves the ledger row of an expired INC to repeat_required.
// The grade row itself is untouched; the INC value stays on record. The
// status update is gated on the row still being in the inc state so a
// concurrent completion or a re-run of the sweep cannot double-apply; the
// returned bool reports whether this call performed the transition.
func (r *GradeRepository) ExpireInc(ctx context.Context, gradeID, studentSubjectID string) (transitioned bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE student_subjects SET status = 'repeat_required' WHERE id = $1 AND status = 'inc'`, studentSubjectID)
	if err != nil {
		return false, fmt.Errorf("expire enrollment status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Already resolved by a grade change or an earlier sweep run.
		err = tx.Commit()
		return false, err
	}

	if err = insertAuditTx(ctx, tx, &models.AuditTrail{
		Action:   models.AuditActionExpireInc,
		Entity:   "grades",
		EntityID: gradeID,
	}); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}
