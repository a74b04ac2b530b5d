package dto

import "github.com/noah-isme/workshop-orchestrator/internal/models"

// CourseResponse summarises a course and its sessions.
type CourseResponse struct {
	ID           string            `json:"course_id"`
	Title        string            `json:"title"`
	Code         string            `json:"code"`
	Language     string            `json:"language"`
	EventbriteID string            `json:"eventbrite_id"`
	ZoomID       string            `json:"zoom_id"`
	SlackChannel string            `json:"slack_channel"`
	Sessions     []*models.Session `json:"sessions"`
}

// NewCourseResponse builds the response view of a course.
func NewCourseResponse(c *models.Course) CourseResponse {
	return CourseResponse{
		ID:           c.ID,
		Title:        c.Title(),
		Code:         c.Code(),
		Language:     c.Language(),
		EventbriteID: c.EventbriteID(),
		ZoomID:       c.ZoomID(),
		SlackChannel: c.SlackChannel(),
		Sessions:     c.Sessions,
	}
}

// SessionQuery selects sessions by start date prefix (YYYY-MM-DD).
type SessionQuery struct {
	Date string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

// SetFieldRequest writes one calendar field. StartDate restricts the write to
// the session with that exact start date; otherwise every session of the
// course is updated.
type SetFieldRequest struct {
	Field     string `json:"field" validate:"required"`
	Value     string `json:"value"`
	StartDate string `json:"start_date,omitempty"`
}

// LinkResponse reports the identifier stored for a course.
type LinkResponse struct {
	CourseID string `json:"course_id"`
	Field    string `json:"field"`
	Value    string `json:"value"`
	Linked   bool   `json:"linked"`
}
