package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/internal/repository"
	"github.com/property360-2/richwell-portal-api/pkg/config"
	appErrors "github.com/property360-2/richwell-portal-api/pkg/errors"
)

type curriculumPlanReader interface {
	GetCurriculumSubjects(ctx context.Context, curriculumID string, year, termNo int) ([]models.CurriculumSubject, error)
}

type sectionLister interface {
	ListBySubjectAndTerm(ctx context.Context, subjectID, termID string) ([]models.SectionDetail, error)
}

type batchEnroller interface {
	EnrollBatch(ctx context.Context, enrollments []*models.StudentSubject, actorID *string) error
	EnrolledUnits(ctx context.Context, studentID, termID string) (float64, error)
}

type auditRecorder interface {
	Create(ctx context.Context, entry *models.AuditTrail) error
}

// PlannerService builds and enacts auto-enrollment plans from the
// student's curriculum. Planning is deterministic: candidate subjects are
// walked in code order and each takes the first open section that fits.
type PlannerService struct {
	catalog     curriculumPlanReader
	sections    sectionLister
	ledger      batchEnroller
	students    studentReader
	standing    standingReader
	terms       termReader
	eligibility eligibilityChecker
	audits      auditRecorder
	cfg         config.AcademicConfig
	logger      *zap.Logger
}

// NewPlannerService constructs PlannerService.
func NewPlannerService(catalog curriculumPlanReader, sections sectionLister, ledger batchEnroller, students studentReader, standing standingReader, terms termReader, eligibility eligibilityChecker, audits auditRecorder, cfg config.AcademicConfig, logger *zap.Logger) *PlannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerService{
		catalog:     catalog,
		sections:    sections,
		ledger:      ledger,
		students:    students,
		standing:    standing,
		terms:       terms,
		eligibility: eligibility,
		audits:      audits,
		cfg:         cfg,
		logger:      logger,
	}
}

// EstimateYearLevel derives the student's year level from completed units.
// A student with no completed subjects is a first-year by definition.
func (s *PlannerService) EstimateYearLevel(standing *models.AcademicStanding) int {
	if standing.IsFreshman() || s.cfg.UnitsPerYearLevel <= 0 {
		return 1
	}
	year := int(standing.CompletedUnits/s.cfg.UnitsPerYearLevel) + 1
	if year > s.cfg.MaxYearLevel {
		year = s.cfg.MaxYearLevel
	}
	return year
}

// Plan computes the auto-enrollment plan for the student against the
// active term without writing anything. Every run works against a unit
// budget: unitCap bounds the term's total units, and a non-positive value
// selects the configured cap.
func (s *PlannerService) Plan(ctx context.Context, studentID string, unitCap float64) (*models.AutoEnrollPlan, error) {
	if unitCap <= 0 {
		unitCap = s.cfg.FreshmanUnitCap
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Status != models.StudentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}

	term, err := s.terms.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}

	standing, err := s.standing.Standing(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic standing")
	}
	year := s.EstimateYearLevel(standing)

	candidates, err := s.catalog.GetCurriculumSubjects(ctx, student.CurriculumID, year, term.TermNo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum plan")
	}

	currentUnits, err := s.ledger.EnrolledUnits(ctx, studentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum enrolled units")
	}

	plan := &models.AutoEnrollPlan{
		StudentID:  studentID,
		TermID:     term.ID,
		YearLevel:  year,
		TermNo:     term.TermNo,
		TotalUnits: 0,
	}
	plannedUnits := currentUnits

	for _, candidate := range candidates {
		subject := &models.Subject{
			ID:    candidate.SubjectID,
			Code:  candidate.SubjectCode,
			Title: candidate.SubjectTitle,
			Units: candidate.SubjectUnits,
			Type:  candidate.SubjectType,
		}

		result, err := s.eligibility.CanEnroll(ctx, student, subject, nil, term.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate eligibility")
		}
		if !result.Allowed {
			plan.Skipped = append(plan.Skipped, skipFromResult(candidate, result))
			continue
		}
		if plannedUnits+subject.Units > unitCap {
			plan.Skipped = append(plan.Skipped, models.SkipReason{
				SubjectID:   candidate.SubjectID,
				SubjectCode: candidate.SubjectCode,
				Cause:       models.EligibilityUnitCapExceeded,
				Detail:      "unit budget exhausted",
			})
			continue
		}

		section, skip := s.pickSection(ctx, candidate, term.ID)
		if skip != nil {
			plan.Skipped = append(plan.Skipped, *skip)
			continue
		}

		plan.Intents = append(plan.Intents, models.EnrollmentIntent{
			SubjectID:   candidate.SubjectID,
			SubjectCode: candidate.SubjectCode,
			SectionID:   section.ID,
			SectionCode: section.SectionCode,
			ProfessorID: section.ProfessorID,
			Units:       subject.Units,
		})
		plan.TotalUnits += subject.Units
		plannedUnits += subject.Units
	}

	return plan, nil
}

// Enact computes the plan and enrolls every intent in one transaction.
// Either every slot commits or none do; on success the enacted plan is
// audited as a unit.
func (s *PlannerService) Enact(ctx context.Context, studentID string, unitCap float64, actorID *string) (*models.AutoEnrollPlan, error) {
	plan, err := s.Plan(ctx, studentID, unitCap)
	if err != nil {
		return nil, err
	}
	if len(plan.Intents) == 0 {
		return plan, nil
	}

	enrollments := make([]*models.StudentSubject, 0, len(plan.Intents))
	for _, intent := range plan.Intents {
		enrollments = append(enrollments, &models.StudentSubject{
			StudentID:   studentID,
			SubjectID:   intent.SubjectID,
			TermID:      plan.TermID,
			SectionID:   intent.SectionID,
			ProfessorID: intent.ProfessorID,
		})
	}

	attempts := s.cfg.EnrollRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		for _, enrollment := range enrollments {
			enrollment.ID = ""
		}
		err = s.ledger.EnrollBatch(ctx, enrollments, actorID)
		if err == nil || !errors.Is(err, repository.ErrConcurrentModification) {
			break
		}
		s.logger.Warn("auto-enroll serialization conflict, retrying",
			zap.String("student_id", studentID),
			zap.Int("attempt", i+1))
	}
	if err != nil {
		return nil, translateLedgerError(err)
	}

	payload, _ := json.Marshal(plan)
	if err := s.audits.Create(ctx, &models.AuditTrail{
		ActorID:   actorID,
		Action:    models.AuditActionAutoEnroll,
		Entity:    "students",
		EntityID:  studentID,
		NewValues: payload,
	}); err != nil {
		s.logger.Error("failed to audit auto-enroll", zap.Error(err))
	}

	s.logger.Info("auto-enroll enacted",
		zap.String("student_id", studentID),
		zap.Int("subjects", len(plan.Intents)),
		zap.Float64("units", plan.TotalUnits))
	return plan, nil
}

// pickSection returns the first open section with a free seat, walking
// sections in code order.
func (s *PlannerService) pickSection(ctx context.Context, candidate models.CurriculumSubject, termID string) (*models.SectionDetail, *models.SkipReason) {
	sections, err := s.sections.ListBySubjectAndTerm(ctx, candidate.SubjectID, termID)
	if err != nil {
		return nil, &models.SkipReason{
			SubjectID:   candidate.SubjectID,
			SubjectCode: candidate.SubjectCode,
			Cause:       models.EligibilityNoOpenSection,
			Detail:      "failed to load sections",
		}
	}
	for i := range sections {
		if sections[i].Status == models.SectionStatusOpen && !sections[i].IsFull() {
			return &sections[i], nil
		}
	}
	return nil, &models.SkipReason{
		SubjectID:   candidate.SubjectID,
		SubjectCode: candidate.SubjectCode,
		Cause:       models.EligibilityNoOpenSection,
	}
}

func skipFromResult(candidate models.CurriculumSubject, result *models.EligibilityResult) models.SkipReason {
	skip := models.SkipReason{
		SubjectID:   candidate.SubjectID,
		SubjectCode: candidate.SubjectCode,
		Cause:       result.Cause,
	}
	if len(result.MissingPrerequisites) > 0 {
		data, _ := json.Marshal(result.MissingPrerequisites)
		skip.Detail = string(data)
	}
	return skip
}
