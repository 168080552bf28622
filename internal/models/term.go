package models

import "time"

// Term models an academic term. At most one term is active at a time.
type Term struct {
	ID                    string     `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	SchoolYear            string     `db:"school_year" json:"school_year"`
	TermNo                int        `db:"term_no" json:"term_no"`
	StartDate             time.Time  `db:"start_date" json:"start_date"`
	EndDate               time.Time  `db:"end_date" json:"end_date"`
	AddDropDeadline       *time.Time `db:"add_drop_deadline" json:"add_drop_deadline,omitempty"`
	GradeEncodingDeadline *time.Time `db:"grade_encoding_deadline" json:"grade_encoding_deadline,omitempty"`
	IsActive              bool       `db:"is_active" json:"is_active"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

// EnrollmentOpen reports whether add/drop actions are still permitted.
// Without an explicit deadline the term end date bounds the window.
func (t Term) EnrollmentOpen(now time.Time) bool {
	deadline := t.EndDate
	if t.AddDropDeadline != nil {
		deadline = *t.AddDropDeadline
	}
	return !dateOnly(now).After(dateOnly(deadline))
}

// GradeEncodingOpen reports whether grade writes are still permitted.
// Grades may always be encoded while the term is active.
func (t Term) GradeEncodingOpen(now time.Time) bool {
	if t.IsActive {
		return true
	}
	if t.GradeEncodingDeadline == nil {
		return false
	}
	return !dateOnly(now).After(dateOnly(*t.GradeEncodingDeadline))
}

func dateOnly(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	SchoolYear string
	IsActive   *bool
	Page       int
	PageSize   int
}
