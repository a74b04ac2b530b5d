package dto

import "github.com/noah-isme/workshop-orchestrator/internal/models"

// ReconcileRequest is the payload of POST /attendance/reconcile. When
// checked_in is omitted it is derived from registrants by status.
type ReconcileRequest struct {
	ParticipantRecords      []models.AttendanceRecord    `json:"participant_records" validate:"dive"`
	Registrants             map[string]models.Registrant `json:"registrants"`
	CheckedIn               map[string]models.Registrant `json:"checked_in,omitempty"`
	TrainerEmails           []string                     `json:"trainer_emails" validate:"dive,email"`
	IncludeTrainerDirectory bool                         `json:"include_trainer_directory"`
}

// CreateAuditRequest queues an audit for a course. Explicit ids override the
// values stored in the calendar.
type CreateAuditRequest struct {
	CourseID     string             `json:"course_id" validate:"required"`
	EventbriteID string             `json:"eventbrite_id,omitempty"`
	ZoomID       string             `json:"zoom_id,omitempty" validate:"omitempty,numeric"`
	Format       models.AuditFormat `json:"format,omitempty" validate:"omitempty,oneof=csv pdf"`
}

// AuditListQuery filters GET /attendance/audits.
type AuditListQuery struct {
	CourseID string `form:"course_id" validate:"required"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=100"`
}
