package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

// panelistRoles are the session fields whose trainers join webinars as panelists.
var panelistRoles = []string{models.FieldInstructor, models.FieldHost, models.FieldAssistants}

// WebinarService links courses to webinars and keeps their panelists in sync
// with the calendar.
type WebinarService struct {
	calendars calendarLoader
	webinars  webinarPlatform
	trainers  trainerDirectory
	location  *time.Location
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewWebinarService constructs a WebinarService. Session dates are compared
// with webinar start times in loc.
func NewWebinarService(calendars calendarLoader, webinars webinarPlatform, trainers trainerDirectory, loc *time.Location, metrics *MetricsService, logger *zap.Logger) *WebinarService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebinarService{
		calendars: calendars,
		webinars:  webinars,
		trainers:  trainers,
		location:  loc,
		metrics:   metrics,
		logger:    logger,
	}
}

// Link stores the id of the webinar held on the course's first date. An
// existing zoom_id is kept.
func (s *WebinarService) Link(ctx context.Context, courseID string) (*dto.LinkResponse, error) {
	cal, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	if id := course.ZoomID(); id != "" {
		return &dto.LinkResponse{CourseID: courseID, Field: models.FieldZoomID, Value: id, Linked: true}, nil
	}

	date := sessionDate(course.FirstSession())
	start := time.Now()
	webinar, err := s.webinars.FindWebinarOn(ctx, date, s.location)
	s.metrics.ObserveUpstream(upstreamZoom, "find_webinar", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamZoom, err)
	}
	if webinar == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "no webinar scheduled on %s", date)
	}

	id := strconv.FormatInt(webinar.ID, 10)
	if err := cal.SetZoomID(courseID, id); err != nil {
		return nil, err
	}
	if err := flushCalendar(ctx, s.calendars, cal); err != nil {
		return nil, err
	}
	s.logger.Info("webinar linked", zap.String("course_id", courseID), zap.String("zoom_id", id))
	return &dto.LinkResponse{CourseID: courseID, Field: models.FieldZoomID, Value: id, Linked: true}, nil
}

// SyncPanelists adds the course trainers missing from the webinar panel.
// Trainer keys absent from the directory are reported, not fatal.
func (s *WebinarService) SyncPanelists(ctx context.Context, courseID string) (*dto.PanelistSyncResponse, error) {
	_, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	zoomID := course.ZoomID()
	if zoomID == "" {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s has no %s", courseID, models.FieldZoomID)
	}

	start := time.Now()
	current, err := s.webinars.Panelists(ctx, zoomID)
	s.metrics.ObserveUpstream(upstreamZoom, "panelists", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamZoom, err)
	}
	existing := make(map[string]struct{}, len(current))
	for _, p := range current {
		existing[strings.ToLower(p.Email)] = struct{}{}
	}

	resp := &dto.PanelistSyncResponse{CourseID: courseID, ZoomID: zoomID, Added: []string{}}
	var additions []zoom.Panelist
	for _, key := range course.TrainerKeys(panelistRoles...) {
		email, err := s.trainers.ZoomEmail(key)
		if err != nil {
			resp.Missing = append(resp.Missing, key)
			continue
		}
		if _, ok := existing[strings.ToLower(email)]; ok {
			continue
		}
		existing[strings.ToLower(email)] = struct{}{}
		name, _ := s.trainers.FullName(key)
		additions = append(additions, zoom.Panelist{Name: name, Email: email})
		resp.Added = append(resp.Added, email)
	}

	if len(additions) > 0 {
		start = time.Now()
		err = s.webinars.AddPanelists(ctx, zoomID, additions)
		s.metrics.ObserveUpstream(upstreamZoom, "add_panelists", err, time.Since(start))
		if err != nil {
			return nil, appErrors.Upstream(upstreamZoom, err)
		}
	}
	if len(resp.Missing) > 0 {
		s.logger.Warn("trainers missing from directory", zap.String("course_id", courseID), zap.Strings("keys", resp.Missing))
	}
	return resp, nil
}
