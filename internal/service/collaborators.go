package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	"github.com/noah-isme/workshop-orchestrator/pkg/eventbrite"
	"github.com/noah-isme/workshop-orchestrator/pkg/gcal"
	"github.com/noah-isme/workshop-orchestrator/pkg/notify"
	"github.com/noah-isme/workshop-orchestrator/pkg/slack"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

// Upstream service labels used in logs, metrics and error messages.
const (
	upstreamSheets     = "sheets"
	upstreamEventbrite = "eventbrite"
	upstreamZoom       = "zoom"
	upstreamSlack      = "slack"
	upstreamCalendar   = "calendar"
	upstreamRabbitMQ   = "rabbitmq"
)

type registrationPlatform interface {
	GetEvent(ctx context.Context, eventID string) (*eventbrite.Event, error)
	FindEventStartingOn(ctx context.Context, date string) (*eventbrite.Event, error)
	Attendees(ctx context.Context, eventID string) ([]eventbrite.Attendee, error)
}

type webinarPlatform interface {
	GetWebinar(ctx context.Context, webinarID string) (*zoom.Webinar, error)
	FindWebinarOn(ctx context.Context, date string, loc *time.Location) (*zoom.Webinar, error)
	Participants(ctx context.Context, webinarID string) ([]zoom.Participant, error)
	Panelists(ctx context.Context, webinarID string) ([]zoom.Panelist, error)
	AddPanelists(ctx context.Context, webinarID string, panelists []zoom.Panelist) error
}

type chatPlatform interface {
	CreateChannel(ctx context.Context, name string) (string, error)
	FindChannel(ctx context.Context, name string) (string, error)
	UserIDByEmail(ctx context.Context, email string) (string, error)
	Invite(ctx context.Context, channelID string, userIDs ...string) error
	SetBookmarks(ctx context.Context, channelID string, bookmarks []slack.Bookmark) error
	Archive(ctx context.Context, channelID string) error
}

type privateCalendar interface {
	Insert(ctx context.Context, ev gcal.Event) (string, error)
	Delete(ctx context.Context, eventID string) error
}

type auditNotifier interface {
	PublishAudit(ctx context.Context, n notify.AuditNotification) error
}

type trainerDirectory interface {
	Get(key string) (models.Trainer, error)
	FullName(key string) (string, error)
	ZoomEmail(key string) (string, error)
	SlackEmail(key string) (string, error)
	CalendarEmail(key string) (string, error)
	Emails() []string
}

// CalendarSource loads a fresh CalendarRepository for each command so that
// no two requests share mutable calendar state.
type CalendarSource struct {
	store   repository.SpreadsheetStore
	rng     string
	metrics *MetricsService
}

// NewCalendarSource binds a spreadsheet range.
func NewCalendarSource(store repository.SpreadsheetStore, rng string, metrics *MetricsService) *CalendarSource {
	if rng == "" {
		rng = repository.DefaultCalendarRange
	}
	return &CalendarSource{store: store, rng: rng, metrics: metrics}
}

// Load reads the range and builds the repository.
func (s *CalendarSource) Load(ctx context.Context) (*repository.CalendarRepository, error) {
	start := time.Now()
	repo, err := repository.LoadCalendar(ctx, s.store, s.rng)
	s.metrics.ObserveUpstream(upstreamSheets, "read", err, time.Since(start))
	return repo, err
}

// Flush writes the repository back when it was modified.
func (s *CalendarSource) Flush(ctx context.Context, repo *repository.CalendarRepository) error {
	if !repo.Modified() {
		return nil
	}
	start := time.Now()
	err := repo.Flush(ctx)
	s.metrics.ObserveUpstream(upstreamSheets, "write", err, time.Since(start))
	return err
}

type calendarLoader interface {
	Load(ctx context.Context) (*repository.CalendarRepository, error)
	Flush(ctx context.Context, repo *repository.CalendarRepository) error
}

// AttendanceRecordsFromParticipants converts a webinar report into
// reconciliation records.
func AttendanceRecordsFromParticipants(participants []zoom.Participant) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(participants))
	for _, p := range participants {
		records = append(records, models.AttendanceRecord{
			UserEmail: p.UserEmail,
			Name:      p.Name,
			Duration:  p.Duration,
		})
	}
	return records
}

// RegistrantsFromAttendees keys registration attendees by lower-cased email.
// Cancelled tickets are skipped. When an email holds several tickets the
// checked-in one wins.
func RegistrantsFromAttendees(attendees []eventbrite.Attendee, checkedInStatuses []string) map[string]models.Registrant {
	registrants := make(map[string]models.Registrant, len(attendees))
	for _, a := range attendees {
		if a.Cancelled {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(a.Profile.Email))
		if email == "" {
			continue
		}
		reg := models.Registrant{
			Email:     email,
			Name:      a.Profile.Name,
			FirstName: a.Profile.FirstName,
			LastName:  a.Profile.LastName,
			Status:    a.Status,
			OrderID:   a.OrderID,
		}
		if existing, ok := registrants[email]; ok && existing.HasStatus(checkedInStatuses) && !reg.HasStatus(checkedInStatuses) {
			continue
		}
		registrants[email] = reg
	}
	return registrants
}
