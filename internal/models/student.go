package models

import "time"

// StudentStatus represents the lifecycle of a student record.
type StudentStatus string

const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusInactive  StudentStatus = "inactive"
	StudentStatusGraduated StudentStatus = "graduated"
)

// Student represents a learner admitted to a program. The program and
// curriculum references are fixed at admission.
type Student struct {
	ID           string        `db:"id" json:"id"`
	UserID       string        `db:"user_id" json:"user_id"`
	StudentNo    string        `db:"student_no" json:"student_no"`
	FullName     string        `db:"full_name" json:"full_name"`
	ProgramID    string        `db:"program_id" json:"program_id"`
	CurriculumID string        `db:"curriculum_id" json:"curriculum_id"`
	Status       StudentStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// StudentDetail enriches Student with program and curriculum context needed
// by the eligibility and grading paths.
type StudentDetail struct {
	Student
	ProgramName       string  `db:"program_name" json:"program_name"`
	PassingGrade      float64 `db:"passing_grade" json:"passing_grade"`
	CurriculumVersion string  `db:"curriculum_version" json:"curriculum_version"`
}

// AcademicStanding summarises a student's progress. Freshman status is
// derived, never stored: true iff no enrollment has ever completed.
type AcademicStanding struct {
	CompletedCount int     `db:"completed_count" json:"completed_count"`
	CompletedUnits float64 `db:"completed_units" json:"completed_units"`
}

// IsFreshman reports whether the student has zero completed subjects.
func (a AcademicStanding) IsFreshman() bool {
	return a.CompletedCount == 0
}
