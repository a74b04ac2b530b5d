package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/templating"
)

// CourseService exposes the calendar to HTTP callers. Every call loads its
// own copy of the spreadsheet.
type CourseService struct {
	calendars calendarLoader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(calendars calendarLoader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{calendars: calendars, validator: validate, logger: logger}
}

// List returns every course, or only those whose first session starts on date.
func (s *CourseService) List(ctx context.Context, query dto.SessionQuery) ([]dto.CourseResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course query")
	}
	cal, err := loadCalendar(ctx, s.calendars)
	if err != nil {
		return nil, err
	}

	courses := cal.Courses()
	if query.Date != "" {
		courses = cal.CoursesStartingOn(query.Date)
	}
	resp := make([]dto.CourseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, dto.NewCourseResponse(c))
	}
	return resp, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, courseID string) (*dto.CourseResponse, error) {
	cal, err := loadCalendar(ctx, s.calendars)
	if err != nil {
		return nil, err
	}
	course, err := cal.Lookup(courseID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

// Sessions returns the sessions starting on the queried date, or all of them.
func (s *CourseService) Sessions(ctx context.Context, query dto.SessionQuery) ([]*models.Session, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session query")
	}
	cal, err := loadCalendar(ctx, s.calendars)
	if err != nil {
		return nil, err
	}
	if query.Date == "" {
		return cal.Sessions(), nil
	}
	sessions := cal.SessionsOn(query.Date)
	if sessions == nil {
		sessions = []*models.Session{}
	}
	return sessions, nil
}

// EquipeTechno returns the technical team keys of a course.
func (s *CourseService) EquipeTechno(ctx context.Context, courseID string) ([]string, error) {
	cal, err := loadCalendar(ctx, s.calendars)
	if err != nil {
		return nil, err
	}
	return cal.EquipeTechno(courseID)
}

// SetField writes one calendar cell group and flushes the spreadsheet. With a
// start date only the matching session changes.
func (s *CourseService) SetField(ctx context.Context, courseID string, req dto.SetFieldRequest) (*dto.CourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field update")
	}
	cal, err := loadCalendar(ctx, s.calendars)
	if err != nil {
		return nil, err
	}

	if req.StartDate != "" {
		err = cal.SetSessionField(courseID, req.StartDate, req.Field, req.Value)
	} else {
		err = cal.SetCourseField(courseID, req.Field, req.Value)
	}
	if err != nil {
		return nil, err
	}
	if err := flushCalendar(ctx, s.calendars, cal); err != nil {
		return nil, err
	}

	s.logger.Info("calendar field updated",
		zap.String("course_id", courseID),
		zap.String("field", req.Field),
		zap.String("start_date", req.StartDate),
	)
	course, err := cal.Lookup(courseID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewCourseResponse(course)
	return &resp, nil
}

func loadCalendar(ctx context.Context, calendars calendarLoader) (*repository.CalendarRepository, error) {
	cal, err := calendars.Load(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrSchema) {
			return nil, err
		}
		return nil, appErrors.Upstream(upstreamSheets, err)
	}
	return cal, nil
}

func flushCalendar(ctx context.Context, calendars calendarLoader, cal *repository.CalendarRepository) error {
	if err := calendars.Flush(ctx, cal); err != nil {
		return appErrors.Upstream(upstreamSheets, err)
	}
	return nil
}

func loadCourse(ctx context.Context, calendars calendarLoader, courseID string) (*repository.CalendarRepository, *models.Course, error) {
	cal, err := loadCalendar(ctx, calendars)
	if err != nil {
		return nil, nil, err
	}
	course, err := cal.Lookup(courseID)
	if err != nil {
		return nil, nil, err
	}
	return cal, course, nil
}

// sessionDate is the YYYY-MM-DD part of a session's start date.
func sessionDate(s *models.Session) string {
	raw := strings.TrimSpace(s.StartDate())
	if len(raw) > 10 {
		return raw[:10]
	}
	return raw
}

// courseVars are the placeholders accepted by per-course templates.
func courseVars(c *models.Course) templating.Vars {
	first := c.FirstSession()
	return templating.Vars{
		"course_id": c.ID,
		"code":      first.Code(),
		"title":     first.Title(),
		"language":  first.Language(),
		"date":      sessionDate(first),
	}
}

func renderCourseTemplate(tpl string, c *models.Course) (string, error) {
	out, err := templating.Render(tpl, courseVars(c))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, err.Error())
	}
	return out, nil
}
