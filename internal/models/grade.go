package models

import (
	"strconv"
	"time"
)

// Grade sentinels. Numeric grades live on a fixed ladder from 1.00 (best) to
// 5.00 (fail) in quarter steps; lower is better.
const (
	GradeInc  = "INC"
	GradeDrp  = "DRP"
	GradePass = "P"
)

// GradeConditional is the conditional mark that forces a repeat.
const GradeConditional = "4.00"

var gradeLadder = map[string]struct{}{
	"1.00": {}, "1.25": {}, "1.50": {}, "1.75": {},
	"2.00": {}, "2.25": {}, "2.50": {}, "2.75": {},
	"3.00": {}, "4.00": {}, "5.00": {},
	GradeInc: {}, GradeDrp: {}, GradePass: {},
}

// IsValidGrade reports whether the value is on the grade ladder or a
// recognised sentinel.
func IsValidGrade(value string) bool {
	_, ok := gradeLadder[value]
	return ok
}

// NumericGrade parses a ladder value; ok is false for sentinels.
func NumericGrade(value string) (float64, bool) {
	if !IsValidGrade(value) {
		return 0, false
	}
	switch value {
	case GradeInc, GradeDrp, GradePass:
		return 0, false
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsPassingGrade reports whether the value satisfies the program threshold.
// Sentinel P always passes; other sentinels never do.
func IsPassingGrade(value string, passingGrade float64) bool {
	if value == GradePass {
		return true
	}
	n, ok := NumericGrade(value)
	if !ok {
		return false
	}
	return n <= passingGrade
}

// Grade is the professor-submitted mark, one-to-one with a StudentSubject.
// IncPostedDate is set only while the value is INC and cleared otherwise.
type Grade struct {
	ID               string     `db:"id" json:"id"`
	StudentSubjectID string     `db:"student_subject_id" json:"student_subject_id"`
	SubjectID        string     `db:"subject_id" json:"subject_id"`
	ProfessorID      string     `db:"professor_id" json:"professor_id"`
	Value            string     `db:"grade" json:"grade"`
	IncPostedDate    *time.Time `db:"inc_posted_date" json:"inc_posted_date,omitempty"`
	Remarks          string     `db:"remarks" json:"remarks,omitempty"`
	PostedAt         time.Time  `db:"posted_at" json:"posted_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsIncomplete reports whether the grade currently reads INC.
func (g Grade) IsIncomplete() bool {
	return g.Value == GradeInc
}

// IncGrade pairs an INC grade with the subject context the expiration sweep
// needs to compute its deadline.
type IncGrade struct {
	Grade
	StudentID   string           `db:"student_id"`
	SubjectCode string           `db:"subject_code"`
	SubjectType SubjectType      `db:"subject_type"`
	Status      EnrollmentStatus `db:"status"`
}
