package models

import "time"

// Program represents an academic program (e.g. BSCS, ABM).
// Immutable once students reference it.
type Program struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Level        string    `db:"level" json:"level"`
	PassingGrade float64   `db:"passing_grade" json:"passing_grade"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Curriculum is a versioned subject plan for a program. Only one curriculum
// per program should be active at a time; the engine always selects the
// active one when resolving a student's plan.
type Curriculum struct {
	ID          string    `db:"id" json:"id"`
	ProgramID   string    `db:"program_id" json:"program_id"`
	Version     string    `db:"version" json:"version"`
	EffectiveSY string    `db:"effective_sy" json:"effective_sy"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CurriculumSubject places a subject within a curriculum at a year/term slot.
type CurriculumSubject struct {
	ID            string    `db:"id" json:"id"`
	CurriculumID  string    `db:"curriculum_id" json:"curriculum_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	YearLevel     int       `db:"year_level" json:"year_level"`
	TermNo        int       `db:"term_no" json:"term_no"`
	IsRecommended bool      `db:"is_recommended" json:"is_recommended"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`

	SubjectCode  string      `db:"subject_code" json:"subject_code"`
	SubjectTitle string      `db:"subject_title" json:"subject_title"`
	SubjectUnits float64     `db:"subject_units" json:"subject_units"`
	SubjectType  SubjectType `db:"subject_type" json:"subject_type"`
}
