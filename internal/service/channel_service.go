package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/slack"
	"github.com/noah-isme/workshop-orchestrator/pkg/templating"
)

// Bookmark titles pinned to every workshop channel.
const (
	BookmarkMagicCastle = "Magic Castle"
	BookmarkZoomURL     = "Zoom URL Participants"
	BookmarkSurvey      = "Survey"
)

// ChannelConfig holds the templates used to name and decorate channels.
type ChannelConfig struct {
	NameTemplate     string
	MagicCastleURL   string
	SurveyURLEnglish string
	SurveyURLFrench  string
}

// ChannelService provisions one chat channel per course.
type ChannelService struct {
	calendars calendarLoader
	chat      chatPlatform
	webinars  webinarPlatform
	trainers  trainerDirectory
	cfg       ChannelConfig
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewChannelService constructs a ChannelService. webinars may be nil, in which
// case the participants bookmark is never set.
func NewChannelService(calendars calendarLoader, chat chatPlatform, webinars webinarPlatform, trainers trainerDirectory, cfg ChannelConfig, metrics *MetricsService, logger *zap.Logger) *ChannelService {
	if cfg.NameTemplate == "" {
		cfg.NameTemplate = "{date}-{code}-{language}"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelService{
		calendars: calendars,
		chat:      chat,
		webinars:  webinars,
		trainers:  trainers,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Provision creates (or reuses) the course channel, invites the trainers,
// pins the course links and records the channel name in the calendar.
func (s *ChannelService) Provision(ctx context.Context, courseID string, opts dto.ProvisionChannelRequest) (*dto.ChannelResponse, error) {
	cal, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}

	name := opts.Name
	if name == "" {
		name = course.SlackChannel()
	}
	if name == "" {
		if name, err = renderCourseTemplate(s.cfg.NameTemplate, course); err != nil {
			return nil, err
		}
	}
	name = ChannelName(name)

	start := time.Now()
	channelID, err := s.chat.CreateChannel(ctx, name)
	s.metrics.ObserveUpstream(upstreamSlack, "create_channel", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamSlack, err)
	}

	resp := &dto.ChannelResponse{CourseID: courseID, ChannelID: channelID, Name: name, Invited: []string{}}
	if !opts.SkipInvites {
		if err := s.invite(ctx, course, channelID, resp); err != nil {
			return nil, err
		}
	}
	if !opts.SkipBookmarks {
		bookmarks, err := s.bookmarks(ctx, course)
		if err != nil {
			return nil, err
		}
		start = time.Now()
		err = s.chat.SetBookmarks(ctx, channelID, bookmarks)
		s.metrics.ObserveUpstream(upstreamSlack, "bookmarks", err, time.Since(start))
		if err != nil {
			return nil, appErrors.Upstream(upstreamSlack, err)
		}
	}

	if course.SlackChannel() != name {
		if err := cal.SetSlackChannel(courseID, name); err != nil {
			return nil, err
		}
		if err := flushCalendar(ctx, s.calendars, cal); err != nil {
			return nil, err
		}
	}

	s.logger.Info("channel provisioned",
		zap.String("course_id", courseID),
		zap.String("channel", name),
		zap.Int("invited", len(resp.Invited)),
		zap.Strings("missing", resp.Missing),
	)
	return resp, nil
}

func (s *ChannelService) invite(ctx context.Context, course *models.Course, channelID string, resp *dto.ChannelResponse) error {
	seen := make(map[string]struct{})
	var userIDs []string
	for _, key := range course.TrainerKeys(panelistRoles...) {
		email, err := s.trainers.SlackEmail(key)
		if err != nil {
			resp.Missing = append(resp.Missing, key)
			continue
		}
		email = strings.ToLower(email)
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}

		start := time.Now()
		userID, err := s.chat.UserIDByEmail(ctx, email)
		s.metrics.ObserveUpstream(upstreamSlack, "lookup_user", err, time.Since(start))
		if err != nil {
			return appErrors.Upstream(upstreamSlack, err)
		}
		if userID == "" {
			resp.Missing = append(resp.Missing, email)
			continue
		}
		userIDs = append(userIDs, userID)
		resp.Invited = append(resp.Invited, email)
	}

	start := time.Now()
	err := s.chat.Invite(ctx, channelID, userIDs...)
	s.metrics.ObserveUpstream(upstreamSlack, "invite", err, time.Since(start))
	if err != nil {
		return appErrors.Upstream(upstreamSlack, err)
	}
	return nil
}

func (s *ChannelService) bookmarks(ctx context.Context, course *models.Course) ([]slack.Bookmark, error) {
	var bookmarks []slack.Bookmark

	if s.cfg.MagicCastleURL != "" {
		vars := courseVars(course)
		vars["code"] = strings.ToLower(vars["code"])
		link, err := templating.Render(s.cfg.MagicCastleURL, vars)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, err.Error())
		}
		bookmarks = append(bookmarks, slack.Bookmark{Title: BookmarkMagicCastle, Link: link})
	}

	if zoomID := course.ZoomID(); zoomID != "" && s.webinars != nil {
		start := time.Now()
		webinar, err := s.webinars.GetWebinar(ctx, zoomID)
		s.metrics.ObserveUpstream(upstreamZoom, "get_webinar", err, time.Since(start))
		switch {
		case err != nil:
			s.logger.Warn("webinar lookup failed, skipping bookmark", zap.String("course_id", course.ID), zap.Error(err))
		case webinar.JoinURL != "":
			bookmarks = append(bookmarks, slack.Bookmark{Title: BookmarkZoomURL, Link: webinar.JoinURL})
		}
	}

	survey := s.cfg.SurveyURLEnglish
	if course.Language() == "fr" {
		survey = s.cfg.SurveyURLFrench
	}
	if survey != "" {
		link, err := renderCourseTemplate(survey, course)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, slack.Bookmark{Title: BookmarkSurvey, Link: link})
	}
	return bookmarks, nil
}

// Archive archives the channel recorded for the course.
func (s *ChannelService) Archive(ctx context.Context, courseID string) (*dto.ChannelResponse, error) {
	_, course, err := loadCourse(ctx, s.calendars, courseID)
	if err != nil {
		return nil, err
	}
	name := course.SlackChannel()
	if name == "" {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "course %s has no %s", courseID, models.FieldSlackChannel)
	}

	start := time.Now()
	channelID, err := s.chat.FindChannel(ctx, name)
	s.metrics.ObserveUpstream(upstreamSlack, "find_channel", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamSlack, err)
	}
	if channelID == "" {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "channel %s not found", name)
	}

	start = time.Now()
	err = s.chat.Archive(ctx, channelID)
	s.metrics.ObserveUpstream(upstreamSlack, "archive", err, time.Since(start))
	if err != nil {
		return nil, appErrors.Upstream(upstreamSlack, err)
	}
	s.logger.Info("channel archived", zap.String("course_id", courseID), zap.String("channel", name))
	return &dto.ChannelResponse{CourseID: courseID, ChannelID: channelID, Name: name}, nil
}

// ChannelName lower-cases a channel name and replaces blanks with dashes.
func ChannelName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), "-")
}
