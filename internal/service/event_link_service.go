package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

// EventLinkService ties calendar courses to their registration events.
type EventLinkService struct {
	calendars calendarLoader
	events    registrationPlatform
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEventLinkService constructs an EventLinkService.
func NewEventLinkService(calendars calendarLoader, events registrationPlatform, metrics *MetricsService, logger *zap.Logger) *EventLinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLinkService{calendars: calendars, events: events, metrics: metrics, logger: logger}
}

// Link stores the id of the registration event starting on the course's first
// date. A course already linked is returned unchanged.
func (s *EventLinkService) Link(ctx context.Context, courseID string) (*dto.LinkResponse, error) {
	cal, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	if id := course.EventbriteID(); id != "" {
		return &dto.LinkResponse{CourseID: courseID, Field: models.FieldEventbriteID, Value: id, Linked: true}, nil
	}

	date := sessionDate(course.FirstSession())
	start := time.Now()
	event, err := s.events.FindEventStartingOn(ctx, date)
	s.metrics.ObserveUpstream(upstreamEventbrite, "find_event", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamEventbrite, err)
	}
	if event == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "no registration event starts on %s", date)
	}

	if err := cal.SetEventbriteID(courseID, event.ID); err != nil {
		return nil, err
	}
	if err := flushCalendar(ctx, s.calendars, cal); err != nil {
		return nil, err
	}
	s.logger.Info("registration event linked", zap.String("course_id", courseID), zap.String("eventbrite_id", event.ID))
	return &dto.LinkResponse{CourseID: courseID, Field: models.FieldEventbriteID, Value: event.ID, Linked: true}, nil
}
