package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type gradeRepository interface {
	FindByStudentSubject(ctx context.Context, studentSubjectID string) (*models.Grade, error)
	Apply(ctx context.Context, grade *models.Grade, newStatus models.EnrollmentStatus, incPostedDate *time.Time, actorID *string) error
	ListExpirableInc(ctx context.Context) ([]models.IncGrade, error)
	ExpireInc(ctx context.Context, gradeID, studentSubjectID string) (bool, error)
}

type ledgerReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentSubject, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentSubjectDetail, error)
}

// ApplyGradeRequest describes a grade submission.
type ApplyGradeRequest struct {
	StudentSubjectID string `json:"student_subject_id" validate:"required"`
	Value            string `json:"grade" validate:"required"`
	Remarks          string `json:"remarks"`
}

// SweepReport summarises one INC expiration run.
type SweepReport struct {
	Checked int `json:"checked"`
	Expired int `json:"expired"`
}

// GradeService drives the grade lifecycle. Posting a grade is the only
// path that moves an enrollment out of the enrolled state; the mapping
// from mark to state is fixed and applied atomically with the grade write.
type GradeService struct {
	grades    gradeRepository
	ledger    ledgerReader
	students  studentReader
	terms     termReader
	cfg       config.AcademicConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepository, ledger ledgerReader, students studentReader, terms termReader, cfg config.AcademicConfig, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, ledger: ledger, students: students, terms: terms, cfg: cfg, validator: validate, logger: logger}
}

// ApplyGrade records a mark for an enrollment and transitions its status.
// Re-posting over an INC keeps the original posting date while the mark
// stays INC and clears it once the incomplete is resolved.
func (s *GradeService) ApplyGrade(ctx context.Context, req ApplyGradeRequest, professorID string, actorID *string) (*models.StudentSubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !models.IsValidGrade(req.Value) {
		return nil, appErrors.Clone(appErrors.ErrInvalidGrade, "grade is not on the grading scale")
	}

	row, err := s.ledger.FindByID(ctx, req.StudentSubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if row.Status != models.EnrollmentStatusEnrolled && row.Status != models.EnrollmentStatusInc {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not in a gradeable state")
	}

	term, err := s.terms.FindByID(ctx, row.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if !term.GradeEncodingOpen(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrGradeWindowClosed, "grade encoding window has closed")
	}

	student, err := s.students.FindByID(ctx, row.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	newStatus := s.statusForGrade(req.Value, student.PassingGrade)
	incPostedDate, err := s.incPostedDate(ctx, req.StudentSubjectID, req.Value)
	if err != nil {
		return nil, err
	}

	grade := &models.Grade{
		StudentSubjectID: row.ID,
		SubjectID:        row.SubjectID,
		ProfessorID:      professorID,
		Value:            req.Value,
		Remarks:          req.Remarks,
	}
	if err := s.grades.Apply(ctx, grade, newStatus, incPostedDate, actorID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply grade")
	}

	detail, err := s.ledger.FindDetailByID(ctx, row.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	s.logger.Info("grade applied",
		zap.String("student_subject_id", row.ID),
		zap.String("grade", req.Value),
		zap.String("new_status", string(newStatus)))
	return detail, nil
}

// statusForGrade maps a mark to the resulting enrollment state.
func (s *GradeService) statusForGrade(value string, passingGrade float64) models.EnrollmentStatus {
	switch value {
	case models.GradeInc:
		return models.EnrollmentStatusInc
	case models.GradeDrp:
		return models.EnrollmentStatusFailed
	case models.GradePass:
		return models.EnrollmentStatusCompleted
	case models.GradeConditional:
		return models.EnrollmentStatusRepeatRequired
	}
	if models.IsPassingGrade(value, passingGrade) {
		return models.EnrollmentStatusCompleted
	}
	return models.EnrollmentStatusFailed
}

// incPostedDate resolves the incomplete marker for the write: a fresh INC
// stamps today, a repeated INC keeps the original date, anything else
// clears it.
func (s *GradeService) incPostedDate(ctx context.Context, studentSubjectID, value string) (*time.Time, error) {
	if value != models.GradeInc {
		return nil, nil
	}
	existing, err := s.grades.FindByStudentSubject(ctx, studentSubjectID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing grade")
	}
	if existing != nil && existing.IsIncomplete() && existing.IncPostedDate != nil {
		return existing.IncPostedDate, nil
	}
	now := time.Now().UTC()
	return &now, nil
}

// ExpireIncompletes moves every enrollment whose INC is past its grace
// period to repeat_required. The INC grade itself stays on record. The
// sweep is idempotent: rows resolved between listing and expiry are
// skipped by the conditional status update.
func (s *GradeService) ExpireIncompletes(ctx context.Context, now time.Time) (*SweepReport, error) {
	grades, err := s.grades.ListExpirableInc(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list incompletes")
	}

	report := &SweepReport{Checked: len(grades)}
	for _, grade := range grades {
		if grade.IncPostedDate == nil {
			continue
		}
		// Expiry starts the day after the deadline; the deadline day
		// itself is still within the grace period.
		deadline := grade.IncPostedDate.AddDate(0, 0, s.graceDays(grade.SubjectType))
		if !now.After(deadline) {
			continue
		}
		transitioned, err := s.grades.ExpireInc(ctx, grade.ID, grade.StudentSubjectID)
		if err != nil {
			s.logger.Error("failed to expire incomplete",
				zap.String("grade_id", grade.ID),
				zap.Error(err))
			continue
		}
		if transitioned {
			report.Expired++
			s.logger.Info("incomplete expired",
				zap.String("grade_id", grade.ID),
				zap.String("student_id", grade.StudentID),
				zap.String("subject_code", grade.SubjectCode))
		}
	}
	return report, nil
}

func (s *GradeService) graceDays(subjectType models.SubjectType) int {
	if subjectType == models.SubjectTypeMajor {
		return s.cfg.MajorIncGraceDays
	}
	return s.cfg.MinorIncGraceDays
}
