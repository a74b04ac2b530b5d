package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/response"
)

type eventLinker interface {
	Link(ctx context.Context, courseID string) (*dto.LinkResponse, error)
}

type webinarSyncer interface {
	Link(ctx context.Context, courseID string) (*dto.LinkResponse, error)
	SyncPanelists(ctx context.Context, courseID string) (*dto.PanelistSyncResponse, error)
}

type channelProvisioner interface {
	Provision(ctx context.Context, courseID string, opts dto.ProvisionChannelRequest) (*dto.ChannelResponse, error)
	Archive(ctx context.Context, courseID string) (*dto.ChannelResponse, error)
}

type calendarSyncer interface {
	Create(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error)
	Delete(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error)
}

type certificateIssuer interface {
	Generate(ctx context.Context, courseID, language string) (*dto.CertificateResponse, error)
}

// IntegrationServices groups the collaborators driven from a course.
type IntegrationServices struct {
	Events       eventLinker
	Webinars     webinarSyncer
	Channels     channelProvisioner
	Calendar     calendarSyncer
	Certificates certificateIssuer
}

// IntegrationHandler pushes course data to the external platforms and
// records the identifiers they return.
type IntegrationHandler struct {
	svc IntegrationServices
}

// NewIntegrationHandler constructs an integration handler.
func NewIntegrationHandler(svc IntegrationServices) *IntegrationHandler {
	return &IntegrationHandler{svc: svc}
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LinkEventbrite godoc
// @Summary Link the registration event
// @Description Finds the Eventbrite event starting on the course's first date and stores its id.
// @Tags Integrations
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /courses/{id}/eventbrite [post]
func (h *IntegrationHandler) LinkEventbrite(c *gin.Context) {
	resp, err := h.svc.Events.Link(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// LinkZoom godoc
// @Summary Link the webinar
// @Tags Integrations
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/zoom [post]
func (h *IntegrationHandler) LinkZoom(c *gin.Context) {
	resp, err := h.svc.Webinars.Link(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// SyncPanelists godoc
// @Summary Add the trainers as webinar panelists
// @Tags Integrations
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/zoom/panelists [post]
func (h *IntegrationHandler) SyncPanelists(c *gin.Context) {
	resp, err := h.svc.Webinars.SyncPanelists(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// ProvisionChannel godoc
// @Summary Create the course Slack channel
// @Tags Integrations
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ProvisionChannelRequest false "Channel options"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/slack-channel [post]
func (h *IntegrationHandler) ProvisionChannel(c *gin.Context) {
	var req dto.ProvisionChannelRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid channel payload"))
		return
	}
	resp, err := h.svc.Channels.Provision(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// ArchiveChannel godoc
// @Summary Archive the course Slack channel
// @Tags Integrations
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/slack-channel [delete]
func (h *IntegrationHandler) ArchiveChannel(c *gin.Context) {
	resp, err := h.svc.Channels.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CreateCalendarEvents godoc
// @Summary Create the trainers' private calendar events
// @Tags Integrations
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CalendarEventsRequest false "Event kinds (default: all)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/calendar-events [post]
func (h *IntegrationHandler) CreateCalendarEvents(c *gin.Context) {
	var req dto.CalendarEventsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}
	resp, err := h.svc.Calendar.Create(c.Request.Context(), c.Param("id"), req.Kinds)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// DeleteCalendarEvents godoc
// @Summary Delete the trainers' private calendar events
// @Tags Integrations
// @Produce json
// @Param id path string true "Course ID"
// @Param kind query []string false "Event kinds (course, post_mortem)" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/calendar-events [delete]
func (h *IntegrationHandler) DeleteCalendarEvents(c *gin.Context) {
	resp, err := h.svc.Calendar.Delete(c.Request.Context(), c.Param("id"), c.QueryArray("kind"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// GenerateCertificates godoc
// @Summary Generate attendance certificates
// @Tags Integrations
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CertificateRequest false "Certificate language"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/certificates [post]
func (h *IntegrationHandler) GenerateCertificates(c *gin.Context) {
	var req dto.CertificateRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid certificate payload"))
		return
	}
	resp, err := h.svc.Certificates.Generate(c.Request.Context(), c.Param("id"), req.Language)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}
