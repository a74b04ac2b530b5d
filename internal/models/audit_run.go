package models

import "time"

// AuditFormat enumerates rendered report formats.
type AuditFormat string

const (
	AuditFormatCSV AuditFormat = "csv"
	AuditFormatPDF AuditFormat = "pdf"
)

// Valid returns true for supported formats.
func (f AuditFormat) Valid() bool {
	return f == AuditFormatCSV || f == AuditFormatPDF
}

// AuditStatus captures the audit run lifecycle.
type AuditStatus string

const (
	AuditStatusQueued     AuditStatus = "QUEUED"
	AuditStatusProcessing AuditStatus = "PROCESSING"
	AuditStatusFinished   AuditStatus = "FINISHED"
	AuditStatusFailed     AuditStatus = "FAILED"
)

// AuditRun is one persisted attendance audit for a course/event pair.
type AuditRun struct {
	ID           string            `db:"id" json:"id"`
	CourseID     string            `db:"course_id" json:"course_id"`
	EventbriteID string            `db:"eventbrite_id" json:"eventbrite_id"`
	ZoomID       string            `db:"zoom_id" json:"zoom_id"`
	Format       AuditFormat       `db:"format" json:"format"`
	Status       AuditStatus       `db:"status" json:"status"`
	Report       *AttendanceReport `db:"report" json:"report,omitempty"`
	ResultURL    *string           `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string            `db:"created_by" json:"created_by"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
}
