package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/gcal"
	"github.com/noah-isme/workshop-orchestrator/pkg/templating"
)

// Private calendar event kinds.
const (
	CalendarKindCourse     = "course"
	CalendarKindPostMortem = "post_mortem"
)

const (
	courseEventDescription     = "See the Zoom invitation or the Slack channel for the links."
	postMortemEventDescription = "See the Slack channel for the links and the post mortem document."
)

// PrivateCalendarConfig shapes the trainers' calendar events.
type PrivateCalendarConfig struct {
	StartOffsetMinutes int
	PostMortemDuration time.Duration
	CourseEventTitle   string
	PostMortemTitle    string
	Location           *time.Location
}

// PrivateCalendarService mirrors course sessions into the trainers' calendar.
type PrivateCalendarService struct {
	calendars calendarLoader
	events    privateCalendar
	trainers  trainerDirectory
	cfg       PrivateCalendarConfig
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewPrivateCalendarService constructs a PrivateCalendarService.
func NewPrivateCalendarService(calendars calendarLoader, events privateCalendar, trainers trainerDirectory, cfg PrivateCalendarConfig, metrics *MetricsService, logger *zap.Logger) *PrivateCalendarService {
	if cfg.CourseEventTitle == "" {
		cfg.CourseEventTitle = "{code} - {title}"
	}
	if cfg.PostMortemTitle == "" {
		cfg.PostMortemTitle = "{code} - {title} - post mortem"
	}
	if cfg.PostMortemDuration <= 0 {
		cfg.PostMortemDuration = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrivateCalendarService{
		calendars: calendars,
		events:    events,
		trainers:  trainers,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

type calendarSlot struct {
	kind    string
	session *models.Session
}

func (c calendarSlot) label() string {
	return c.kind + " " + c.session.StartDate()
}

func (c calendarSlot) eventID() string {
	if c.kind == CalendarKindPostMortem {
		return c.session.PostMortemPrivateGCalID()
	}
	return c.session.PrivateGCalID()
}

func slotField(kind string) string {
	if kind == CalendarKindPostMortem {
		return models.FieldPostMortemPrivateGCalID
	}
	return models.FieldPrivateGCalID
}

func requireSlotColumn(cal *repository.CalendarRepository, kind string) error {
	if field := slotField(kind); !slices.Contains(cal.Header(), field) {
		return appErrors.Clonef(appErrors.ErrSchema, "calendar has no %q column for %s events", field, kind)
	}
	return nil
}

func (c calendarSlot) store(cal *repository.CalendarRepository, courseID, value string) error {
	if c.kind == CalendarKindPostMortem {
		return cal.SetPostMortemPrivateGCalID(courseID, c.session.StartDate(), value)
	}
	return cal.SetPrivateGCalID(courseID, c.session.StartDate(), value)
}

// slots lists the events a course owns: one course event per session and a
// post-mortem after the session that ends last. It fails before any calendar
// call when the sheet cannot hold the ids of a requested kind.
func (s *PrivateCalendarService) slots(cal *repository.CalendarRepository, course *models.Course, kinds []string) ([]calendarSlot, error) {
	wantCourse, wantPostMortem := len(kinds) == 0, len(kinds) == 0
	for _, k := range kinds {
		switch k {
		case CalendarKindCourse:
			wantCourse = true
		case CalendarKindPostMortem:
			wantPostMortem = true
		default:
			return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown calendar event kind %q", k)
		}
	}
	if wantCourse {
		if err := requireSlotColumn(cal, CalendarKindCourse); err != nil {
			return nil, err
		}
	}
	if wantPostMortem {
		if err := requireSlotColumn(cal, CalendarKindPostMortem); err != nil {
			return nil, err
		}
	}

	var latest *models.Session
	if wantPostMortem {
		var err error
		if latest, err = course.LatestSession(s.cfg.Location); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}

	var slots []calendarSlot
	for _, session := range course.Sessions {
		if wantCourse {
			slots = append(slots, calendarSlot{kind: CalendarKindCourse, session: session})
		}
		if wantPostMortem && session == latest {
			slots = append(slots, calendarSlot{kind: CalendarKindPostMortem, session: session})
		}
	}
	return slots, nil
}

// Create inserts the missing events and records their ids. A failure on one
// session is logged and the others still proceed; the calendar is flushed once.
func (s *PrivateCalendarService) Create(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error) {
	cal, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots(cal, course, kinds)
	if err != nil {
		return nil, err
	}
	attendees := s.attendees(course)

	resp := &dto.CalendarEventsResponse{CourseID: courseID}
	for _, slot := range slots {
		if slot.eventID() != "" {
			resp.Skipped = append(resp.Skipped, slot.label())
			continue
		}
		ev, err := s.event(course, slot, attendees)
		if err != nil {
			s.logger.Warn("calendar event skipped", zap.String("course_id", courseID), zap.String("slot", slot.label()), zap.Error(err))
			resp.Failed = append(resp.Failed, slot.label())
			continue
		}

		start := time.Now()
		id, err := s.events.Insert(ctx, ev)
		s.metrics.ObserveUpstream(upstreamCalendar, "insert", err, time.Since(start))
		if err != nil {
			s.logger.Warn("calendar insert failed", zap.String("course_id", courseID), zap.String("slot", slot.label()), zap.Error(err))
			resp.Failed = append(resp.Failed, slot.label())
			continue
		}
		if err := slot.store(cal, courseID, id); err != nil {
			s.logger.Error("calendar event created but not recorded", zap.String("course_id", courseID), zap.String("slot", slot.label()), zap.String("event_id", id), zap.Error(err))
			resp.Failed = append(resp.Failed, slot.label())
			continue
		}
		resp.Created = append(resp.Created, slot.label())
	}

	if err := flushCalendar(ctx, s.calendars, cal); err != nil {
		return nil, err
	}
	s.logger.Info("private calendar events created",
		zap.String("course_id", courseID),
		zap.Int("created", len(resp.Created)),
		zap.Int("skipped", len(resp.Skipped)),
		zap.Int("failed", len(resp.Failed)),
	)
	return resp, nil
}

// Delete removes the recorded events and clears their ids.
func (s *PrivateCalendarService) Delete(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error) {
	cal, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots(cal, course, kinds)
	if err != nil {
		return nil, err
	}

	resp := &dto.CalendarEventsResponse{CourseID: courseID}
	for _, slot := range slots {
		id := slot.eventID()
		if id == "" {
			resp.Skipped = append(resp.Skipped, slot.label())
			continue
		}
		start := time.Now()
		err := s.events.Delete(ctx, id)
		s.metrics.ObserveUpstream(upstreamCalendar, "delete", err, time.Since(start))
		if err != nil {
			s.logger.Warn("calendar delete failed", zap.String("course_id", courseID), zap.String("slot", slot.label()), zap.Error(err))
			resp.Failed = append(resp.Failed, slot.label())
			continue
		}
		if err := slot.store(cal, courseID, ""); err != nil {
			s.logger.Error("calendar event deleted but id not cleared", zap.String("course_id", courseID), zap.String("slot", slot.label()), zap.String("event_id", id), zap.Error(err))
			resp.Failed = append(resp.Failed, slot.label())
			continue
		}
		resp.Deleted = append(resp.Deleted, slot.label())
	}

	if err := flushCalendar(ctx, s.calendars, cal); err != nil {
		return nil, err
	}
	s.logger.Info("private calendar events deleted",
		zap.String("course_id", courseID),
		zap.Int("deleted", len(resp.Deleted)),
		zap.Int("failed", len(resp.Failed)),
	)
	return resp, nil
}

func (s *PrivateCalendarService) attendees(course *models.Course) []string {
	var emails []string
	seen := make(map[string]struct{})
	for _, key := range course.TrainerKeys(panelistRoles...) {
		email, err := s.trainers.CalendarEmail(key)
		if err != nil {
			s.logger.Warn("trainer missing from directory", zap.String("course_id", course.ID), zap.String("key", key))
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	return emails
}

func (s *PrivateCalendarService) event(course *models.Course, slot calendarSlot, attendees []string) (gcal.Event, error) {
	start, err := slot.session.StartTime(s.cfg.Location)
	if err != nil {
		return gcal.Event{}, err
	}
	end, err := slot.session.EndTime(s.cfg.Location)
	if err != nil {
		return gcal.Event{}, err
	}

	vars := courseVars(course)
	vars["date"] = sessionDate(slot.session)

	tpl, description := s.cfg.CourseEventTitle, courseEventDescription
	if slot.kind == CalendarKindPostMortem {
		tpl, description = s.cfg.PostMortemTitle, postMortemEventDescription
		end = end.Add(s.cfg.PostMortemDuration)
	} else {
		start = start.Add(time.Duration(s.cfg.StartOffsetMinutes) * time.Minute)
	}
	title, err := templating.Render(tpl, vars)
	if err != nil {
		return gcal.Event{}, fmt.Errorf("event title: %w", err)
	}

	return gcal.Event{
		Summary:     title,
		Description: description,
		Start:       start,
		End:         end,
		Attendees:   attendees,
	}, nil
}
