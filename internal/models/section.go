package models

import "time"

// SectionStatus tracks the availability of a subject offering.
type SectionStatus string

const (
	SectionStatusOpen   SectionStatus = "open"
	SectionStatusFull   SectionStatus = "full"
	SectionStatusClosed SectionStatus = "closed"
)

// Section is an offering of one subject in one term, tied to a professor.
type Section struct {
	ID          string        `db:"id" json:"id"`
	SubjectID   string        `db:"subject_id" json:"subject_id"`
	TermID      string        `db:"term_id" json:"term_id"`
	ProfessorID string        `db:"professor_id" json:"professor_id"`
	SectionCode string        `db:"section_code" json:"section_code"`
	Capacity    int           `db:"capacity" json:"capacity"`
	Status      SectionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// SectionDetail carries the live occupancy count alongside the section row.
// EnrolledCount is derived from enrollment rows in non-cancelled states.
type SectionDetail struct {
	Section
	EnrolledCount int `db:"enrolled_count" json:"enrolled_count"`
}

// IsFull reports whether the section is at or over capacity.
func (s SectionDetail) IsFull() bool {
	return s.EnrolledCount >= s.Capacity
}

// SeatsLeft returns the remaining capacity, never negative.
func (s SectionDetail) SeatsLeft() int {
	left := s.Capacity - s.EnrolledCount
	if left < 0 {
		return 0
	}
	return left
}
