package models

import "time"

// AuditAction constants represent state-changing actions to be logged.
const (
	AuditActionEnrollStudent   = "enroll_student"
	AuditActionDropEnrollment  = "drop_enrollment"
	AuditActionAutoEnroll      = "auto_enroll"
	AuditActionPostGrade       = "post_grade"
	AuditActionExpireInc       = "expire_inc"
	AuditActionActivateTerm    = "activate_term"
	AuditActionDeactivateTerm  = "deactivate_term"
	AuditActionArchiveTerm     = "archive_term"
	AuditActionGraduateStudent = "graduate_student"
	AuditActionAddPrerequisite = "add_prerequisite"
)

// AuditTrail is an append-only record of a state-changing action.
// Rows are never updated or deleted.
type AuditTrail struct {
	ID        string    `db:"id" json:"id"`
	ActorID   *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action    string    `db:"action" json:"action"`
	Entity    string    `db:"entity" json:"entity"`
	EntityID  string    `db:"entity_id" json:"entity_id"`
	OldValues []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues []byte    `db:"new_values" json:"new_values,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit listing queries.
type AuditFilter struct {
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Page     int
	PageSize int
}
