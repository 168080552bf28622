package models

// Eligibility failure causes. These mirror the typed error codes so callers
// can render precise messages without re-querying.
const (
	EligibilityAlreadyEnrolled     = "ALREADY_ENROLLED"
	EligibilityAlreadyCompleted    = "ALREADY_COMPLETED"
	EligibilityPrerequisitesNotMet = "PREREQUISITES_NOT_MET"
	EligibilityUnitCapExceeded     = "UNIT_CAP_EXCEEDED"
	EligibilitySectionNotOpen      = "SECTION_NOT_OPEN"
	EligibilitySectionFull         = "SECTION_FULL"
	EligibilityNoOpenSection       = "NO_OPEN_SECTION"
)

// EligibilityResult is the outcome of an eligibility evaluation. When the
// check fails, Cause holds the first failed check in evaluation order and
// the remaining fields carry its diagnostic detail. MissingPrerequisites is
// always fully populated on a prerequisite failure, not just the first edge.
type EligibilityResult struct {
	Allowed              bool     `json:"allowed"`
	Cause                string   `json:"cause,omitempty"`
	MissingPrerequisites []string `json:"missing_prerequisites,omitempty"`
	CurrentUnits         float64  `json:"current_units,omitempty"`
	AddingUnits          float64  `json:"adding_units,omitempty"`
	UnitCap              float64  `json:"unit_cap,omitempty"`
	SeatsLeft            int      `json:"seats_left,omitempty"`
}

// Eligible is the successful evaluation result.
func Eligible() *EligibilityResult {
	return &EligibilityResult{Allowed: true}
}

// EnrollmentIntent is one accepted slot in an auto-enrollment plan.
type EnrollmentIntent struct {
	SubjectID   string  `json:"subject_id"`
	SubjectCode string  `json:"subject_code"`
	SectionID   string  `json:"section_id"`
	SectionCode string  `json:"section_code"`
	ProfessorID string  `json:"professor_id"`
	Units       float64 `json:"units"`
}

// SkipReason records why a candidate subject was left out of a plan.
type SkipReason struct {
	SubjectID   string `json:"subject_id"`
	SubjectCode string `json:"subject_code"`
	Cause       string `json:"cause"`
	Detail      string `json:"detail,omitempty"`
}

// AutoEnrollPlan is the full outcome of a planning run.
type AutoEnrollPlan struct {
	StudentID  string             `json:"student_id"`
	TermID     string             `json:"term_id"`
	YearLevel  int                `json:"year_level"`
	TermNo     int                `json:"term_no"`
	Intents    []EnrollmentIntent `json:"intents"`
	Skipped    []SkipReason       `json:"skipped"`
	TotalUnits float64            `json:"total_units"`
}
