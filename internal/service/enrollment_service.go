package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/repository"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type ledgerRepository interface {
	List(ctx context.Context, filter models.StudentSubjectFilter) ([]models.StudentSubjectDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentSubject, error)
	FindDetailByID(ctx context.Context, id string) (*models.StudentSubjectDetail, error)
	Enroll(ctx context.Context, enrollment *models.StudentSubject, actorID *string) error
	Delete(ctx context.Context, id string, actorID *string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type subjectReader interface {
	GetSubject(ctx context.Context, id string) (*models.Subject, error)
}

type sectionReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
}

type eligibilityChecker interface {
	CanEnroll(ctx context.Context, student *models.StudentDetail, subject *models.Subject, section *models.SectionDetail, termID string) (*models.EligibilityResult, error)
}

// EnrollRequest describes a manual enrollment.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// EnrollmentService orchestrates enrollment and drop workflows against the
// active term.
type EnrollmentService struct {
	repo        ledgerRepository
	students    studentReader
	subjects    subjectReader
	sections    sectionReader
	terms       termReader
	eligibility eligibilityChecker
	cfg         config.AcademicConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo ledgerRepository, students studentReader, subjects subjectReader, sections sectionReader, terms termReader, eligibility eligibilityChecker, cfg config.AcademicConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:        repo,
		students:    students,
		subjects:    subjects,
		sections:    sections,
		terms:       terms,
		eligibility: eligibility,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// List returns ledger rows with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.StudentSubjectFilter) ([]models.StudentSubjectDetail, *models.Pagination, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one ledger row with joined context.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.StudentSubjectDetail, error) {
	row, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return row, nil
}

// Enroll registers the student into a section of the subject in the active
// term. Eligibility is evaluated up front for a precise failure cause; the
// write transaction re-checks the seat and duplicate invariants under row
// locks and is retried on serialization conflicts.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, actorID *string) (*models.StudentSubjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	if !term.EnrollmentOpen(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentWindowClosed, "add/drop deadline has passed")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}

	subject, err := s.subjects.GetSubject(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	section, err := s.sections.FindDetailByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	if section.SubjectID != subject.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section does not offer the subject")
	}
	if section.TermID != term.ID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section does not belong to the active term")
	}

	result, err := s.eligibility.CanEnroll(ctx, student, subject, section, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
	}
	if !result.Allowed {
		return nil, eligibilityError(result)
	}

	enrollment := &models.StudentSubject{
		StudentID:   student.ID,
		SubjectID:   subject.ID,
		TermID:      term.ID,
		SectionID:   section.ID,
		ProfessorID: section.ProfessorID,
	}
	if err := s.enrollWithRetry(ctx, enrollment, actorID); err != nil {
		return nil, err
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("subject_id", subject.ID),
		zap.String("section_id", section.ID))
	return detail, nil
}

// CheckEligibility evaluates whether the student could enroll in the subject
// during the active term without writing anything. SectionID is optional; when
// empty the section checks are skipped.
func (s *EnrollmentService) CheckEligibility(ctx context.Context, studentID, subjectID, sectionID string) (*models.EligibilityResult, error) {
	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	subject, err := s.subjects.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	var section *models.SectionDetail
	if sectionID != "" {
		section, err = s.sections.FindDetailByID(ctx, sectionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
	}

	result, err := s.eligibility.CanEnroll(ctx, student, subject, section, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
	}
	return result, nil
}

// Drop removes an enrollment before the add/drop deadline.
func (s *EnrollmentService) Drop(ctx context.Context, id string, actorID *string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if row.Status != models.EnrollmentStatusEnrolled {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is no longer droppable")
	}

	term, err := s.terms.FindByID(ctx, row.TermID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if !term.EnrollmentOpen(time.Now().UTC()) {
		return appErrors.Clone(appErrors.ErrEnrollmentWindowClosed, "add/drop deadline has passed")
	}

	if err := s.repo.Delete(ctx, id, actorID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}
	s.logger.Info("enrollment dropped", zap.String("student_subject_id", id))
	return nil
}

// enrollWithRetry retries the enrollment transaction on serialization
// conflicts up to the configured attempt count.
func (s *EnrollmentService) enrollWithRetry(ctx context.Context, enrollment *models.StudentSubject, actorID *string) error {
	attempts := s.cfg.EnrollRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		enrollment.ID = ""
		err = s.repo.Enroll(ctx, enrollment, actorID)
		if err == nil || !errors.Is(err, repository.ErrConcurrentModification) {
			break
		}
		s.logger.Warn("enrollment serialization conflict, retrying",
			zap.String("student_id", enrollment.StudentID),
			zap.Int("attempt", i+1))
	}
	return translateLedgerError(err)
}

// translateLedgerError maps repository sentinels to API errors.
func translateLedgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSectionFull):
		return appErrors.Clone(appErrors.ErrSectionFull, "section is already full")
	case errors.Is(err, repository.ErrSectionClosed):
		return appErrors.Clone(appErrors.ErrSectionNotOpen, "section is not open for enrollment")
	case errors.Is(err, repository.ErrDuplicateEnrollment):
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already holds this subject for the term")
	case errors.Is(err, repository.ErrConcurrentModification):
		return appErrors.Clone(appErrors.ErrConcurrentModification, "enrollment conflicted with a concurrent change, please retry")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
}

// eligibilityError converts a failed evaluation into the matching typed
// error, carrying the diagnostic fields as details.
func eligibilityError(result *models.EligibilityResult) error {
	switch result.Cause {
	case models.EligibilityAlreadyEnrolled:
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "student already holds this subject for the term")
	case models.EligibilityAlreadyCompleted:
		return appErrors.Clone(appErrors.ErrAlreadyCompleted, "subject already completed")
	case models.EligibilityPrerequisitesNotMet:
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrPrerequisitesNotMet, "prerequisites not satisfied"),
			map[string]interface{}{"missing": result.MissingPrerequisites})
	case models.EligibilityUnitCapExceeded:
		return appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrUnitCapExceeded, "freshman unit cap exceeded"),
			map[string]interface{}{
				"current_units": result.CurrentUnits,
				"adding_units":  result.AddingUnits,
				"unit_cap":      result.UnitCap,
			})
	case models.EligibilitySectionNotOpen:
		return appErrors.Clone(appErrors.ErrSectionNotOpen, "section is not open for enrollment")
	case models.EligibilitySectionFull:
		return appErrors.Clone(appErrors.ErrSectionFull, "section is already full")
	default:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not permitted")
	}
}
