package models

import "time"

// SubjectType distinguishes major from minor subjects. The type drives the
// grace period applied to incomplete grades.
type SubjectType string

const (
	SubjectTypeMajor SubjectType = "major"
	SubjectTypeMinor SubjectType = "minor"
)

// Subject represents an academic subject.
type Subject struct {
	ID        string      `db:"id" json:"id"`
	ProgramID string      `db:"program_id" json:"program_id"`
	Code      string      `db:"code" json:"code"`
	Title     string      `db:"title" json:"title"`
	Units     float64     `db:"units" json:"units"`
	Type      SubjectType `db:"type" json:"type"`
	Active    bool        `db:"active" json:"active"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// IsMajor reports whether the subject is a major subject.
func (s Subject) IsMajor() bool {
	return s.Type == SubjectTypeMajor
}

// Prerequisite is a directed edge: Subject requires PrereqSubject.
// The full edge set must form a DAG; edges are validated at authoring time.
type Prerequisite struct {
	ID              string `db:"id" json:"id"`
	SubjectID       string `db:"subject_id" json:"subject_id"`
	PrereqSubjectID string `db:"prereq_subject_id" json:"prereq_subject_id"`

	PrereqCode string `db:"prereq_code" json:"prereq_code"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	ProgramID string
	Type      SubjectType
	Search    string
	Page      int
	PageSize  int
}
