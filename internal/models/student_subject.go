package models

import "time"

// EnrollmentStatus represents the lifecycle of a per-term enrollment.
// All states other than enrolled are terminal for the term's attempt;
// a later re-enrollment creates a new StudentSubject row.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled       EnrollmentStatus = "enrolled"
	EnrollmentStatusCompleted      EnrollmentStatus = "completed"
	EnrollmentStatusFailed         EnrollmentStatus = "failed"
	EnrollmentStatusInc            EnrollmentStatus = "inc"
	EnrollmentStatusRepeatRequired EnrollmentStatus = "repeat_required"
)

// StudentSubject is the enrollment record: unique per (student, subject,
// term). Its status is driven exclusively by the grade lifecycle, never by
// direct user edits.
type StudentSubject struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	SubjectID   string           `db:"subject_id" json:"subject_id"`
	TermID      string           `db:"term_id" json:"term_id"`
	SectionID   string           `db:"section_id" json:"section_id"`
	ProfessorID string           `db:"professor_id" json:"professor_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// StudentSubjectDetail enriches the enrollment with subject, section, term
// and grade context.
type StudentSubjectDetail struct {
	StudentSubject
	StudentNo     string      `db:"student_no" json:"student_no"`
	StudentName   string      `db:"student_name" json:"student_name"`
	SubjectCode   string      `db:"subject_code" json:"subject_code"`
	SubjectTitle  string      `db:"subject_title" json:"subject_title"`
	SubjectUnits  float64     `db:"subject_units" json:"subject_units"`
	SubjectType   SubjectType `db:"subject_type" json:"subject_type"`
	SectionCode   string      `db:"section_code" json:"section_code"`
	TermName      string      `db:"term_name" json:"term_name"`
	GradeValue    *string     `db:"grade_value" json:"grade_value,omitempty"`
	GradePostedAt *time.Time  `db:"grade_posted_at" json:"grade_posted_at,omitempty"`
	GradeRemarks  *string     `db:"grade_remarks" json:"grade_remarks,omitempty"`
	IncPostedDate *time.Time  `db:"inc_posted_date" json:"inc_posted_date,omitempty"`
}

// StudentSubjectFilter provides filters for listing enrollments.
type StudentSubjectFilter struct {
	StudentID string
	SubjectID string
	TermID    string
	SectionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
