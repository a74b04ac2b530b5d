package models

import "strings"

// Platform names a service on which a trainer may use a distinct address.
type Platform string

const (
	PlatformZoom     Platform = "zoom"
	PlatformSlack    Platform = "slack"
	PlatformCalendar Platform = "calendar"
)

// Trainer is one entry of the trainer directory.
type Trainer struct {
	Key             string `yaml:"-" json:"key"`
	FirstName       string `yaml:"firstname" json:"firstname"`
	LastName        string `yaml:"lastname" json:"lastname"`
	HomeInstitution string `yaml:"home_institution" json:"home_institution"`
	Email           string `yaml:"email" json:"email"`
	ZoomEmail       string `yaml:"zoom_email,omitempty" json:"zoom_email,omitempty"`
	SlackEmail      string `yaml:"slack_email,omitempty" json:"slack_email,omitempty"`
	CalendarEmail   string `yaml:"calendar_email,omitempty" json:"calendar_email,omitempty"`
}

// FullName joins first and last names.
func (t Trainer) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// PlatformEmail returns the override for p, falling back to the primary email.
func (t Trainer) PlatformEmail(p Platform) string {
	var override string
	switch p {
	case PlatformZoom:
		override = t.ZoomEmail
	case PlatformSlack:
		override = t.SlackEmail
	case PlatformCalendar:
		override = t.CalendarEmail
	}
	if strings.TrimSpace(override) != "" {
		return override
	}
	return t.Email
}
