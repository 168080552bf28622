package models

import (
	"encoding/json"
	"time"
)

// Archive reasons.
const (
	ArchiveReasonTermClosed       = "Term Closed"
	ArchiveReasonStudentGraduated = "Student Graduated"
)

// Archive is an immutable JSON snapshot of an entity taken at term closure
// or graduation. Rows are never updated or deleted once created.
type Archive struct {
	ID         string          `db:"id" json:"id"`
	Entity     string          `db:"entity" json:"entity"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Snapshot   json.RawMessage `db:"data_snapshot" json:"data_snapshot"`
	Reason     string          `db:"reason" json:"reason"`
	ArchivedBy *string         `db:"archived_by" json:"archived_by,omitempty"`
	ArchivedAt time.Time       `db:"archived_at" json:"archived_at"`
}

// ArchiveFilter narrows archive listing queries.
type ArchiveFilter struct {
	Entity   string
	EntityID string
	Reason   string
	Page     int
	PageSize int
}

// EnrollmentSnapshot is the per-enrollment archive payload written at term
// closure.
type EnrollmentSnapshot struct {
	StudentNo     string         `json:"student_no"`
	StudentName   string         `json:"student_name"`
	SubjectCode   string         `json:"subject_code"`
	SubjectTitle  string         `json:"subject_title"`
	SubjectUnits  float64        `json:"subject_units"`
	SectionCode   string         `json:"section_code"`
	ProfessorID   string         `json:"professor_id"`
	Status        string         `json:"status"`
	EnrolledDate  time.Time      `json:"enrolled_date"`
	Grade         *GradeSnapshot `json:"grade,omitempty"`
}

// GradeSnapshot embeds the grade payload inside archived enrollments.
type GradeSnapshot struct {
	Value         string     `json:"grade"`
	PostedAt      time.Time  `json:"posted_at"`
	IncPostedDate *time.Time `json:"inc_posted_date,omitempty"`
	Remarks       string     `json:"remarks,omitempty"`
}

// TermSnapshot summarises a closed term: counts only, no per-student payload.
type TermSnapshot struct {
	Name                  string     `json:"name"`
	TermNo                int        `json:"term_no"`
	StartDate             time.Time  `json:"start_date"`
	EndDate               time.Time  `json:"end_date"`
	AddDropDeadline       *time.Time `json:"add_drop_deadline,omitempty"`
	GradeEncodingDeadline *time.Time `json:"grade_encoding_deadline,omitempty"`
	TotalSections         int        `json:"total_sections"`
	TotalEnrollments      int        `json:"total_enrollments"`
}

// StudentRecordSnapshot is the full academic history archived at graduation.
type StudentRecordSnapshot struct {
	StudentInfo  StudentInfoSnapshot  `json:"student_info"`
	Record       []EnrollmentSnapshot `json:"academic_record"`
	Statistics   RecordStatistics     `json:"statistics"`
	ArchivedDate time.Time            `json:"archived_date"`
}

// StudentInfoSnapshot captures student identity at graduation time.
type StudentInfoSnapshot struct {
	StudentNo         string `json:"student_no"`
	FullName          string `json:"full_name"`
	Program           string `json:"program"`
	CurriculumVersion string `json:"curriculum_version"`
	Status            string `json:"status"`
}

// RecordStatistics aggregates a student's academic history.
type RecordStatistics struct {
	TotalSubjects     int      `json:"total_subjects"`
	CompletedSubjects int      `json:"completed_subjects"`
	FailedSubjects    int      `json:"failed_subjects"`
	IncompleteCount   int      `json:"incomplete_count"`
	CompletedUnits    float64  `json:"completed_units"`
	GPA               *float64 `json:"gpa,omitempty"`
}
