package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/property360-2/richwell-portal-api/internal/models"
)

// Sentinel errors surfaced by enrollment writes. Services translate these
// into API error codes.
var (
	ErrSectionFull            = errors.New("section is full")
	ErrSectionClosed          = errors.New("section is not open")
	ErrDuplicateEnrollment    = errors.New("duplicate enrollment")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// StudentSubjectRepository manages the enrollment ledger. Enrollment
// writes lock the student and section rows so seat counts and duplicate
// checks stay consistent under concurrent requests.
type StudentSubjectRepository struct {
	db *sqlx.DB
}

// NewStudentSubjectRepository constructs the repository.
func NewStudentSubjectRepository(db *sqlx.DB) *StudentSubjectRepository {
	return &StudentSubjectRepository{db: db}
}

const studentSubjectDetailColumns = `ss.id, ss.student_id, ss.subject_id, ss.term_id, ss.section_id, ss.professor_id, ss.status, ss.created_at,
        st.student_no, st.full_name AS student_name,
        s.code AS subject_code, s.title AS subject_title, s.units AS subject_units, s.type AS subject_type,
        sec.section_code, t.name AS term_name,
        g.grade AS grade_value, g.posted_at AS grade_posted_at, g.remarks AS grade_remarks, g.inc_posted_date`

const studentSubjectDetailJoins = `
        FROM student_subjects ss
        JOIN students st ON st.id = ss.student_id
        JOIN subjects s ON s.id = ss.subject_id
        JOIN sections sec ON sec.id = ss.section_id
        JOIN terms t ON t.id = ss.term_id
        LEFT JOIN grades g ON g.student_subject_id = ss.id`

// FindByID returns a ledger row by ID.
func (r *StudentSubjectRepository) FindByID(ctx context.Context, id string) (*models.StudentSubject, error) {
	const query = `SELECT id, student_id, subject_id, term_id, section_id, professor_id, status, created_at
        FROM student_subjects WHERE id = $1`
	var row models.StudentSubject
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// FindDetailByID returns a ledger row with subject, section, term and
// grade context joined in.
func (r *StudentSubjectRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentSubjectDetail, error) {
	query := fmt.Sprintf(`SELECT %s%s WHERE ss.id = $1`, studentSubjectDetailColumns, studentSubjectDetailJoins)
	var row models.StudentSubjectDetail
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns ledger rows matching the filter.
func (r *StudentSubjectRepository) List(ctx context.Context, filter models.StudentSubjectFilter) ([]models.StudentSubjectDetail, int, error) {
	query := fmt.Sprintf(`SELECT %s%s WHERE 1=1`, studentSubjectDetailColumns, studentSubjectDetailJoins)
	countQuery := `SELECT COUNT(*) FROM student_subjects ss WHERE 1=1`
	var args []interface{}

	if filter.StudentID != "" {
		cond := fmt.Sprintf(" AND ss.student_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.StudentID)
	}
	if filter.TermID != "" {
		cond := fmt.Sprintf(" AND ss.term_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.TermID)
	}
	if filter.SectionID != "" {
		cond := fmt.Sprintf(" AND ss.section_id = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		cond := fmt.Sprintf(" AND ss.status = $%d", len(args)+1)
		query += cond
		countQuery += cond
		args = append(args, filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	query += fmt.Sprintf(" ORDER BY ss.created_at DESC LIMIT %d OFFSET %d", size, (page-1)*size)

	var rows []models.StudentSubjectDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student subjects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count student subjects: %w", err)
	}
	return rows, total, nil
}

// ListAllByTerm returns every ledger row of a term without pagination,
// used by term-closure archival.
func (r *StudentSubjectRepository) ListAllByTerm(ctx context.Context, termID string) ([]models.StudentSubjectDetail, error) {
	query := fmt.Sprintf(`SELECT %s%s WHERE ss.term_id = $1 ORDER BY ss.created_at ASC`, studentSubjectDetailColumns, studentSubjectDetailJoins)
	var rows []models.StudentSubjectDetail
	if err := r.db.SelectContext(ctx, &rows, query, termID); err != nil {
		return nil, fmt.Errorf("list term enrollments: %w", err)
	}
	return rows, nil
}

// ListAllByStudent returns a student's full enrollment history without
// pagination, used by graduation archival.
func (r *StudentSubjectRepository) ListAllByStudent(ctx context.Context, studentID string) ([]models.StudentSubjectDetail, error) {
	query := fmt.Sprintf(`SELECT %s%s WHERE ss.student_id = $1 ORDER BY ss.created_at ASC`, studentSubjectDetailColumns, studentSubjectDetailJoins)
	var rows []models.StudentSubjectDetail
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return rows, nil
}

// ExistsForTerm reports whether the student already holds the subject in
// the term in any non-retakeable state. Failed and repeat_required rows do
// not block a retake.
func (r *StudentSubjectRepository) ExistsForTerm(ctx context.Context, studentID, subjectID, termID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM student_subjects
        WHERE student_id = $1 AND subject_id = $2 AND term_id = $3
          AND status NOT IN ('failed', 'repeat_required'))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, termID); err != nil {
		return false, fmt.Errorf("check duplicate enrollment: %w", err)
	}
	return exists, nil
}

// HasCompleted reports whether the student has ever completed the subject.
func (r *StudentSubjectRepository) HasCompleted(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM student_subjects
        WHERE student_id = $1 AND subject_id = $2 AND status = 'completed')`
	var completed bool
	if err := r.db.GetContext(ctx, &completed, query, studentID, subjectID); err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return completed, nil
}

// PassedSubject reports whether the student completed the subject with a
// grade at or better than passingGrade. Non-numeric passing marks count.
func (r *StudentSubjectRepository) PassedSubject(ctx context.Context, studentID, subjectID string, passingGrade float64) (bool, error) {
	const query = `SELECT COALESCE(g.grade, '') FROM student_subjects ss
        JOIN grades g ON g.student_subject_id = ss.id
        WHERE ss.student_id = $1 AND ss.subject_id = $2 AND ss.status = 'completed'
        ORDER BY g.updated_at DESC LIMIT 1`
	var grade string
	err := r.db.GetContext(ctx, &grade, query, studentID, subjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check passed subject: %w", err)
	}
	return models.IsPassingGrade(grade, passingGrade), nil
}

// EnrolledUnits sums the units of the student's active enrollments in the
// term.
func (r *StudentSubjectRepository) EnrolledUnits(ctx context.Context, studentID, termID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(s.units), 0) FROM student_subjects ss
        JOIN subjects s ON s.id = ss.subject_id
        WHERE ss.student_id = $1 AND ss.term_id = $2 AND ss.status = 'enrolled'`
	var units float64
	if err := r.db.GetContext(ctx, &units, query, studentID, termID); err != nil {
		return 0, fmt.Errorf("sum enrolled units: %w", err)
	}
	return units, nil
}

// Enroll inserts one ledger row atomically. The student and section rows
// are locked for the duration so the seat check cannot race another
// enrollment into the same section.
func (r *StudentSubjectRepository) Enroll(ctx context.Context, enrollment *models.StudentSubject, actorID *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateEnrollErr(err)
		}
	}()

	if err = r.enrollTx(ctx, tx, enrollment, actorID); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// EnrollBatch inserts every enrollment in one transaction. Any failure
// rolls back the whole batch.
func (r *StudentSubjectRepository) EnrollBatch(ctx context.Context, enrollments []*models.StudentSubject, actorID *string) (err error) {
	if len(enrollments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = translateEnrollErr(err)
		}
	}()

	for _, enrollment := range enrollments {
		if err = r.enrollTx(ctx, tx, enrollment, actorID); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *StudentSubjectRepository) enrollTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.StudentSubject, actorID *string) error {
	// Lock ordering is student first, then section, on every write path.
	var lockedStudent string
	if err := tx.GetContext(ctx, &lockedStudent,
		`SELECT id FROM students WHERE id = $1 FOR UPDATE`, enrollment.StudentID); err != nil {
		return fmt.Errorf("lock student: %w", err)
	}

	var section struct {
		Capacity int                  `db:"capacity"`
		Status   models.SectionStatus `db:"status"`
		Enrolled int                  `db:"enrolled_count"`
	}
	if err := tx.GetContext(ctx, &section,
		`SELECT capacity, status,
            (SELECT COUNT(*) FROM student_subjects ss WHERE ss.section_id = sections.id AND ss.status = 'enrolled') AS enrolled_count
         FROM sections WHERE id = $1 FOR UPDATE`, enrollment.SectionID); err != nil {
		return fmt.Errorf("lock section: %w", err)
	}
	if section.Status == models.SectionStatusClosed {
		return ErrSectionClosed
	}
	if section.Enrolled >= section.Capacity {
		return ErrSectionFull
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM student_subjects
            WHERE student_id = $1 AND subject_id = $2 AND term_id = $3
              AND status NOT IN ('failed', 'repeat_required'))`,
		enrollment.StudentID, enrollment.SubjectID, enrollment.TermID); err != nil {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}
	if exists {
		return ErrDuplicateEnrollment
	}

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.Status = models.EnrollmentStatusEnrolled
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO student_subjects (id, student_id, subject_id, term_id, section_id, professor_id, status)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		enrollment.ID, enrollment.StudentID, enrollment.SubjectID, enrollment.TermID,
		enrollment.SectionID, enrollment.ProfessorID, enrollment.Status); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err := refreshSectionStatusTx(ctx, tx, enrollment.SectionID); err != nil {
		return err
	}

	payload, _ := json.Marshal(enrollment)
	return insertAuditTx(ctx, tx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionEnrollStudent,
		Entity:    "student_subjects",
		EntityID:  enrollment.ID,
		NewValues: payload,
	})
}

// Delete removes an enrollment and refreshes the section occupancy state.
// Only rows still in the enrolled state can be dropped.
func (r *StudentSubjectRepository) Delete(ctx context.Context, id string, actorID *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var row models.StudentSubject
	if err = tx.GetContext(ctx, &row,
		`SELECT id, student_id, subject_id, term_id, section_id, professor_id, status, created_at
         FROM student_subjects WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	if row.Status != models.EnrollmentStatusEnrolled {
		err = fmt.Errorf("drop enrollment: row %s is %s", id, row.Status)
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM student_subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}

	if err = refreshSectionStatusTx(ctx, tx, row.SectionID); err != nil {
		return err
	}

	payload, _ := json.Marshal(row)
	if err = insertAuditTx(ctx, tx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionDropEnrollment,
		Entity:    "student_subjects",
		EntityID:  row.ID,
		OldValues: payload,
	}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// refreshSectionStatusTx recounts section occupancy and flips the status
// between open and full. Closed sections are left untouched.
func refreshSectionStatusTx(ctx context.Context, tx *sqlx.Tx, sectionID string) error {
	const query = `UPDATE sections SET status = CASE
            WHEN status = 'closed' THEN status
            WHEN (SELECT COUNT(*) FROM student_subjects ss WHERE ss.section_id = sections.id AND ss.status = 'enrolled') >= capacity THEN 'full'
            ELSE 'open'
        END
        WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, sectionID); err != nil {
		return fmt.Errorf("refresh section status: %w", err)
	}
	return nil
}

// translateEnrollErr maps Postgres concurrency and constraint failures to
// sentinel errors the service layer can retry or report on.
func translateEnrollErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization failure, deadlock detected
			return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
		case "23505": // unique violation
			return fmt.Errorf("%w: %v", ErrDuplicateEnrollment, err)
		}
	}
	return err
}
