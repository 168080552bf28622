package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type archiveRepository interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, archive *models.Archive) error
	FindByID(ctx context.Context, id string) (*models.Archive, error)
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, int, error)
}

type archiveLedgerReader interface {
	ListAllByTerm(ctx context.Context, termID string) ([]models.StudentSubjectDetail, error)
	ListAllByStudent(ctx context.Context, studentID string) ([]models.StudentSubjectDetail, error)
}

type sectionCounter interface {
	CountByTerm(ctx context.Context, termID string) (int, error)
}

type studentStatusWriter interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	SetStatusTx(ctx context.Context, tx *sqlx.Tx, studentID string, status models.StudentStatus) error
}

type auditTxRecorder interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, entry *models.AuditTrail) error
}

// TermClosureReport summarises one term-closure run.
type TermClosureReport struct {
	TermID              string `json:"term_id"`
	ArchivedEnrollments int    `json:"archived_enrollments"`
	TotalSections       int    `json:"total_sections"`
}

// ArchiveService writes immutable snapshots at the end of a term and at
// graduation. Each run is one transaction; a failure mid-run leaves no
// partial archive behind.
type ArchiveService struct {
	db       txBeginner
	archives archiveRepository
	ledger   archiveLedgerReader
	sections sectionCounter
	students studentStatusWriter
	terms    termReader
	audits   auditTxRecorder
	logger   *zap.Logger
}

// NewArchiveService constructs ArchiveService.
func NewArchiveService(db txBeginner, archives archiveRepository, ledger archiveLedgerReader, sections sectionCounter, students studentStatusWriter, terms termReader, audits auditTxRecorder, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveService{db: db, archives: archives, ledger: ledger, sections: sections, students: students, terms: terms, audits: audits, logger: logger}
}

// List returns archive rows with pagination metadata.
func (s *ArchiveService) List(ctx context.Context, filter models.ArchiveFilter) ([]models.Archive, *models.Pagination, error) {
	archives, total, err := s.archives.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archives")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return archives, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one archive row.
func (s *ArchiveService) Get(ctx context.Context, id string) (*models.Archive, error) {
	archive, err := s.archives.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load archive")
	}
	return archive, nil
}

// CloseTerm archives every enrollment of a deactivated term plus one term
// summary row, all in a single transaction. Active terms are rejected;
// deactivate first, then close.
func (s *ArchiveService) CloseTerm(ctx context.Context, termID string, actorID *string) (*TermClosureReport, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.IsActive {
		return nil, appErrors.Clone(appErrors.ErrTermStillActive, "term must be deactivated before closure")
	}

	rows, err := s.ledger.ListAllByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term enrollments")
	}
	totalSections, err := s.sections.CountByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin archival")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range rows {
		snapshot, marshalErr := json.Marshal(enrollmentSnapshot(&rows[i]))
		if marshalErr != nil {
			err = marshalErr
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode snapshot")
		}
		if err = s.archives.CreateTx(ctx, tx, &models.Archive{
			Entity:     "student_subjects",
			EntityID:   rows[i].ID,
			Snapshot:   snapshot,
			Reason:     models.ArchiveReasonTermClosed,
			ArchivedBy: actorID,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive enrollment")
		}
	}

	summary, marshalErr := json.Marshal(models.TermSnapshot{
		Name:                  term.Name,
		TermNo:                term.TermNo,
		StartDate:             term.StartDate,
		EndDate:               term.EndDate,
		AddDropDeadline:       term.AddDropDeadline,
		GradeEncodingDeadline: term.GradeEncodingDeadline,
		TotalSections:         totalSections,
		TotalEnrollments:      len(rows),
	})
	if marshalErr != nil {
		err = marshalErr
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode term summary")
	}
	if err = s.archives.CreateTx(ctx, tx, &models.Archive{
		Entity:     "terms",
		EntityID:   term.ID,
		Snapshot:   summary,
		Reason:     models.ArchiveReasonTermClosed,
		ArchivedBy: actorID,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive term summary")
	}

	if err = s.audits.CreateTx(ctx, tx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionArchiveTerm,
		Entity:    "terms",
		EntityID:  term.ID,
		NewValues: summary,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to audit term closure")
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit archival")
	}

	s.logger.Info("term closed",
		zap.String("term_id", term.ID),
		zap.Int("archived_enrollments", len(rows)))
	return &TermClosureReport{
		TermID:              term.ID,
		ArchivedEnrollments: len(rows),
		TotalSections:       totalSections,
	}, nil
}

// GraduateStudent snapshots the full academic history, computes the
// record statistics, and flips the student to graduated, atomically.
func (s *ArchiveService) GraduateStudent(ctx context.Context, studentID string, actorID *string) (*models.StudentRecordSnapshot, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status == models.StudentStatusGraduated {
		return nil, appErrors.Clone(appErrors.ErrAlreadyGraduated, "student already graduated")
	}

	rows, err := s.ledger.ListAllByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic history")
	}

	record := make([]models.EnrollmentSnapshot, 0, len(rows))
	for i := range rows {
		record = append(record, enrollmentSnapshot(&rows[i]))
	}
	snapshot := &models.StudentRecordSnapshot{
		StudentInfo: models.StudentInfoSnapshot{
			StudentNo:         student.StudentNo,
			FullName:          student.FullName,
			Program:           student.ProgramName,
			CurriculumVersion: student.CurriculumVersion,
			Status:            string(models.StudentStatusGraduated),
		},
		Record:       record,
		Statistics:   computeRecordStatistics(rows),
		ArchivedDate: time.Now().UTC(),
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode record snapshot")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin graduation")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.archives.CreateTx(ctx, tx, &models.Archive{
		Entity:     "students",
		EntityID:   student.ID,
		Snapshot:   payload,
		Reason:     models.ArchiveReasonStudentGraduated,
		ArchivedBy: actorID,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive student record")
	}
	if err = s.students.SetStatusTx(ctx, tx, student.ID, models.StudentStatusGraduated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	if err = s.audits.CreateTx(ctx, tx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionGraduateStudent,
		Entity:    "students",
		EntityID:  student.ID,
		NewValues: payload,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to audit graduation")
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit graduation")
	}

	s.logger.Info("student graduated",
		zap.String("student_id", student.ID),
		zap.Int("record_rows", len(record)))
	return snapshot, nil
}

// enrollmentSnapshot freezes a ledger row into its archive payload.
func enrollmentSnapshot(row *models.StudentSubjectDetail) models.EnrollmentSnapshot {
	snapshot := models.EnrollmentSnapshot{
		StudentNo:    row.StudentNo,
		StudentName:  row.StudentName,
		SubjectCode:  row.SubjectCode,
		SubjectTitle: row.SubjectTitle,
		SubjectUnits: row.SubjectUnits,
		SectionCode:  row.SectionCode,
		ProfessorID:  row.ProfessorID,
		Status:       string(row.Status),
		EnrolledDate: row.CreatedAt,
	}
	if row.GradeValue != nil && row.GradePostedAt != nil {
		grade := &models.GradeSnapshot{
			Value:         *row.GradeValue,
			PostedAt:      *row.GradePostedAt,
			IncPostedDate: row.IncPostedDate,
		}
		if row.GradeRemarks != nil {
			grade.Remarks = *row.GradeRemarks
		}
		snapshot.Grade = grade
	}
	return snapshot
}

// computeRecordStatistics aggregates history rows. GPA is the unit-weighted
// mean over completed subjects with numeric grades; students with none get
// no GPA rather than a zero.
func computeRecordStatistics(rows []models.StudentSubjectDetail) models.RecordStatistics {
	var stats models.RecordStatistics
	var weighted, units float64

	stats.TotalSubjects = len(rows)
	for i := range rows {
		switch rows[i].Status {
		case models.EnrollmentStatusCompleted:
			stats.CompletedSubjects++
			stats.CompletedUnits += rows[i].SubjectUnits
			if rows[i].GradeValue != nil {
				if n, ok := models.NumericGrade(*rows[i].GradeValue); ok {
					weighted += n * rows[i].SubjectUnits
					units += rows[i].SubjectUnits
				}
			}
		case models.EnrollmentStatusFailed, models.EnrollmentStatusRepeatRequired:
			stats.FailedSubjects++
		case models.EnrollmentStatusInc:
			stats.IncompleteCount++
		}
	}
	if units > 0 {
		gpa := weighted / units
		stats.GPA = &gpa
	}
	return stats
}
