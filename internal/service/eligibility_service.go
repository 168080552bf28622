package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/property360-2/richwell-portal-api/internal/models"
	"github.com/property360-2/richwell-portal-api/pkg/config"
)

type eligibilityLedger interface {
	ExistsForTerm(ctx context.Context, studentID, subjectID, termID string) (bool, error)
	HasCompleted(ctx context.Context, studentID, subjectID string) (bool, error)
	PassedSubject(ctx context.Context, studentID, subjectID string, passingGrade float64) (bool, error)
	EnrolledUnits(ctx context.Context, studentID, termID string) (float64, error)
}

type prerequisiteReader interface {
	GetPrerequisites(ctx context.Context, subjectID string) ([]models.Prerequisite, error)
}

type standingReader interface {
	Standing(ctx context.Context, studentID string) (*models.AcademicStanding, error)
}

// EligibilityService runs the enrollment eligibility checks. Checks run in
// a fixed order and stop at the first failure, except prerequisites, which
// report every missing subject at once. The service only reads; the
// authoritative re-check happens inside the enrollment transaction.
type EligibilityService struct {
	ledger   eligibilityLedger
	catalog  prerequisiteReader
	students standingReader
	cfg      config.AcademicConfig
	logger   *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(ledger eligibilityLedger, catalog prerequisiteReader, students standingReader, cfg config.AcademicConfig, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{ledger: ledger, catalog: catalog, students: students, cfg: cfg, logger: logger}
}

// CanEnroll evaluates whether the student may take the subject in the
// given section this term. A nil section skips the seat checks; the
// planner uses that mode to test subject-level eligibility before picking
// a section.
func (s *EligibilityService) CanEnroll(ctx context.Context, student *models.StudentDetail, subject *models.Subject, section *models.SectionDetail, termID string) (*models.EligibilityResult, error) {
	enrolled, err := s.ledger.ExistsForTerm(ctx, student.ID, subject.ID, termID)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if enrolled {
		return &models.EligibilityResult{Cause: models.EligibilityAlreadyEnrolled}, nil
	}

	completed, err := s.ledger.HasCompleted(ctx, student.ID, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("check completion: %w", err)
	}
	if completed {
		return &models.EligibilityResult{Cause: models.EligibilityAlreadyCompleted}, nil
	}

	missing, err := s.missingPrerequisites(ctx, student, subject.ID)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return &models.EligibilityResult{
			Cause:                models.EligibilityPrerequisitesNotMet,
			MissingPrerequisites: missing,
		}, nil
	}

	standing, err := s.students.Standing(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("load standing: %w", err)
	}
	if standing.IsFreshman() {
		current, err := s.ledger.EnrolledUnits(ctx, student.ID, termID)
		if err != nil {
			return nil, fmt.Errorf("sum units: %w", err)
		}
		if current+subject.Units > s.cfg.FreshmanUnitCap {
			return &models.EligibilityResult{
				Cause:        models.EligibilityUnitCapExceeded,
				CurrentUnits: current,
				AddingUnits:  subject.Units,
				UnitCap:      s.cfg.FreshmanUnitCap,
			}, nil
		}
	}

	if section != nil {
		if section.Status != models.SectionStatusOpen {
			return &models.EligibilityResult{Cause: models.EligibilitySectionNotOpen}, nil
		}
		if section.IsFull() {
			return &models.EligibilityResult{
				Cause:     models.EligibilitySectionFull,
				SeatsLeft: 0,
			}, nil
		}
	}

	return models.Eligible(), nil
}

// missingPrerequisites returns the codes of every prerequisite the student
// has not passed at the program's passing threshold.
func (s *EligibilityService) missingPrerequisites(ctx context.Context, student *models.StudentDetail, subjectID string) ([]string, error) {
	prereqs, err := s.catalog.GetPrerequisites(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load prerequisites: %w", err)
	}
	var missing []string
	for _, prereq := range prereqs {
		passed, err := s.ledger.PassedSubject(ctx, student.ID, prereq.PrereqSubjectID, student.PassingGrade)
		if err != nil {
			return nil, fmt.Errorf("check prerequisite %s: %w", prereq.PrereqCode, err)
		}
		if !passed {
			missing = append(missing, prereq.PrereqCode)
		}
	}
	return missing, nil
}
