package service

import (
	"context"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/export"
)

// CertificateOwnerPrefix marks download tokens that belong to certificates
// rather than audit runs.
const CertificateOwnerPrefix = "certificate-"

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

type artifactStore interface {
	Store(ownerID, filename string, payload []byte) (*ExportResult, error)
}

// CertificateConfig shapes generated certificates.
type CertificateConfig struct {
	Issuer            string
	Location          *time.Location
	CheckedInStatuses []string
}

// CertificateService issues attendance certificates to checked-in attendees.
type CertificateService struct {
	calendars calendarLoader
	events    registrationPlatform
	renderer  certificateRenderer
	store     artifactStore
	cfg       CertificateConfig
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(calendars calendarLoader, events registrationPlatform, renderer certificateRenderer, store artifactStore, cfg CertificateConfig, metrics *MetricsService, logger *zap.Logger) *CertificateService {
	if renderer == nil {
		renderer = export.NewCertificateRenderer()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.CheckedInStatuses) == 0 {
		cfg.CheckedInStatuses = models.DefaultCheckedInStatuses
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		calendars: calendars,
		events:    events,
		renderer:  renderer,
		store:     store,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Generate renders one PDF per checked-in attendee of the course's
// registration event. language defaults to the course language.
func (s *CertificateService) Generate(ctx context.Context, courseID, language string) (*dto.CertificateResponse, error) {
	_, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	eventID := course.EventbriteID()
	if eventID == "" {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s has no %s", courseID, models.FieldEventbriteID)
	}

	if language == "" {
		language = course.Language()
	}
	if language == "" {
		language = "en"
	}
	if !export.SupportedCertificateLanguage(language) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "certificates are not available in %q", language)
	}

	date, err := course.Start(s.cfg.Location)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	hours, err := s.hours(ctx, course, eventID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	attendees, err := s.events.Attendees(ctx, eventID)
	s.metrics.ObserveUpstream(upstreamEventbrite, "attendees", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamEventbrite, err)
	}
	checkedIn := CheckedInSubset(RegistrantsFromAttendees(attendees, s.cfg.CheckedInStatuses), s.cfg.CheckedInStatuses)

	emails := make([]string, 0, len(checkedIn))
	for email := range checkedIn {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	resp := &dto.CertificateResponse{CourseID: courseID, Language: language, Certificates: make([]dto.CertificateLink, 0, len(emails))}
	for _, email := range emails {
		reg := checkedIn[email]
		payload, err := s.renderer.Render(export.Certificate{
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Email:     email,
			OrderID:   reg.OrderID,
			Workshop:  course.Title(),
			Date:      date,
			Hours:     hours,
			Language:  language,
			Issuer:    s.cfg.Issuer,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
		}

		filename := export.CertificateFilename(reg.FirstName, reg.LastName, reg.OrderID)
		result, err := s.store.Store(CertificateOwnerPrefix+uuid.NewString(), path.Join("certificates", sanitizeFilename(courseID), filename), payload)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
		}
		resp.Certificates = append(resp.Certificates, dto.CertificateLink{
			Email:     email,
			Name:      reg.DisplayName(),
			Filename:  filename,
			URL:       result.URL,
			ExpiresAt: result.ExpiresAt,
		})
	}

	s.logger.Info("certificates generated",
		zap.String("course_id", courseID),
		zap.String("language", language),
		zap.Int("count", len(resp.Certificates)),
	)
	return resp, nil
}

// hours sums the session lengths from the calendar, falling back to the
// registration event's own duration when a session has none.
func (s *CertificateService) hours(ctx context.Context, course *models.Course, eventID string) (float64, error) {
	var total float64
	for _, session := range course.Sessions {
		h, err := session.Hours()
		if err != nil {
			return s.eventHours(ctx, eventID)
		}
		total += h
	}
	return total, nil
}

func (s *CertificateService) eventHours(ctx context.Context, eventID string) (float64, error) {
	start := time.Now()
	event, err := s.events.GetEvent(ctx, eventID)
	s.metrics.ObserveUpstream(upstreamEventbrite, "get_event", err, time.Since(start))
	if err != nil {
		return 0, appErrors.Upstream(upstreamEventbrite, err)
	}
	begin, err := event.Start.Time()
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "event start is unreadable")
	}
	end, err := event.End.Time()
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "event end is unreadable")
	}
	return end.Sub(begin).Hours(), nil
}
