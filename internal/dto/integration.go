package dto

import "time"

// ProvisionChannelRequest tunes POST /courses/:id/slack-channel.
type ProvisionChannelRequest struct {
	Name          string `json:"name,omitempty"`
	SkipInvites   bool   `json:"skip_invites"`
	SkipBookmarks bool   `json:"skip_bookmarks"`
}

// ChannelResponse describes a provisioned chat channel.
type ChannelResponse struct {
	CourseID  string   `json:"course_id"`
	ChannelID string   `json:"channel_id"`
	Name      string   `json:"name"`
	Invited   []string `json:"invited"`
	Missing   []string `json:"missing,omitempty"`
}

// CalendarEventsRequest selects the private calendar event kinds to act on.
type CalendarEventsRequest struct {
	Kinds []string `json:"kinds" validate:"omitempty,dive,oneof=course post_mortem"`
}

// CertificateRequest selects the certificate language.
type CertificateRequest struct {
	Language string `json:"language,omitempty" validate:"omitempty,oneof=en fr"`
}

// PanelistSyncResponse lists the panelists added to a course webinar.
type PanelistSyncResponse struct {
	CourseID string   `json:"course_id"`
	ZoomID   string   `json:"zoom_id"`
	Added    []string `json:"added"`
	Missing  []string `json:"missing,omitempty"`
}

// CalendarEventsResponse summarises a private calendar run.
type CalendarEventsResponse struct {
	CourseID string   `json:"course_id"`
	Created  []string `json:"created,omitempty"`
	Deleted  []string `json:"deleted,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// CertificateLink is one signed certificate download.
type CertificateLink struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CertificateResponse lists the certificates generated for a course.
type CertificateResponse struct {
	CourseID     string            `json:"course_id"`
	Language     string            `json:"language"`
	Certificates []CertificateLink `json:"certificates"`
}
