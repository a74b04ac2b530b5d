package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/dto"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

type integrationMock struct {
	err       error
	courseID  string
	kinds     []string
	language  string
	opts      dto.ProvisionChannelRequest
	archived  bool
	panelists bool
}

func (m *integrationMock) Link(ctx context.Context, courseID string) (*dto.LinkResponse, error) {
	m.courseID = courseID
	if m.err != nil {
		return nil, m.err
	}
	return &dto.LinkResponse{CourseID: courseID, Field: "eventbrite_id", Value: "evt-1", Linked: true}, nil
}

func (m *integrationMock) SyncPanelists(ctx context.Context, courseID string) (*dto.PanelistSyncResponse, error) {
	m.courseID = courseID
	m.panelists = true
	return &dto.PanelistSyncResponse{CourseID: courseID, ZoomID: "8123", Added: []string{"ann.zoom@cq.org"}}, m.err
}

func (m *integrationMock) Provision(ctx context.Context, courseID string, opts dto.ProvisionChannelRequest) (*dto.ChannelResponse, error) {
	m.courseID = courseID
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ChannelResponse{CourseID: courseID, ChannelID: "C001", Name: "2024-03-05-py101-en"}, nil
}

func (m *integrationMock) Archive(ctx context.Context, courseID string) (*dto.ChannelResponse, error) {
	m.courseID = courseID
	m.archived = true
	return &dto.ChannelResponse{CourseID: courseID, ChannelID: "C001"}, m.err
}

func (m *integrationMock) Create(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error) {
	m.courseID = courseID
	m.kinds = kinds
	return &dto.CalendarEventsResponse{CourseID: courseID, Created: []string{"course 2024-03-05 13:00:00"}}, m.err
}

func (m *integrationMock) Delete(ctx context.Context, courseID string, kinds []string) (*dto.CalendarEventsResponse, error) {
	m.courseID = courseID
	m.kinds = kinds
	return &dto.CalendarEventsResponse{CourseID: courseID}, m.err
}

func (m *integrationMock) Generate(ctx context.Context, courseID, language string) (*dto.CertificateResponse, error) {
	m.courseID = courseID
	m.language = language
	if m.err != nil {
		return nil, m.err
	}
	return &dto.CertificateResponse{CourseID: courseID, Language: language}, nil
}

func newIntegrationHandlerForTest(m *integrationMock) *IntegrationHandler {
	return NewIntegrationHandler(IntegrationServices{
		Events:       m,
		Webinars:     m,
		Channels:     m,
		Calendar:     m,
		Certificates: m,
	})
}

func courseContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	c, w := newGinContext(method, path, body)
	c.Params = gin.Params{{Key: "id", Value: "PY101-2024"}}
	return c, w
}

func TestIntegrationHandlerLinks(t *testing.T) {
	mock := &integrationMock{}
	handler := newIntegrationHandlerForTest(mock)

	c, w := courseContext(http.MethodPost, "/courses/PY101-2024/eventbrite", nil)
	handler.LinkEventbrite(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PY101-2024", mock.courseID)
	assert.Contains(t, w.Body.String(), `"linked":true`)

	c, w = courseContext(http.MethodPost, "/courses/PY101-2024/zoom/panelists", nil)
	handler.SyncPanelists(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.panelists)
}

func TestIntegrationHandlerLinkUpstreamFailure(t *testing.T) {
	mock := &integrationMock{err: appErrors.Upstream("eventbrite", assert.AnError)}
	handler := newIntegrationHandlerForTest(mock)

	c, w := courseContext(http.MethodPost, "/courses/PY101-2024/zoom", nil)
	handler.LinkZoom(c)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"UPSTREAM_ERROR"`)
}

func TestIntegrationHandlerProvisionChannel(t *testing.T) {
	mock := &integrationMock{}
	handler := newIntegrationHandlerForTest(mock)

	c, w := courseContext(http.MethodPost, "/courses/PY101-2024/slack-channel", nil)
	handler.ProvisionChannel(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.ProvisionChannelRequest{}, mock.opts)

	c, w = courseContext(http.MethodPost, "/courses/PY101-2024/slack-channel", []byte(`{"name":"Custom Name","skip_invites":true}`))
	handler.ProvisionChannel(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Custom Name", mock.opts.Name)
	assert.True(t, mock.opts.SkipInvites)
	assert.False(t, mock.opts.SkipBookmarks)

	c, w = courseContext(http.MethodPost, "/courses/PY101-2024/slack-channel", []byte(`{"name":`))
	handler.ProvisionChannel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = courseContext(http.MethodDelete, "/courses/PY101-2024/slack-channel", nil)
	handler.ArchiveChannel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.archived)
}

func TestIntegrationHandlerCalendarEvents(t *testing.T) {
	mock := &integrationMock{}
	handler := newIntegrationHandlerForTest(mock)

	c, w := courseContext(http.MethodPost, "/courses/PY101-2024/calendar-events", []byte(`{"kinds":["post_mortem"]}`))
	handler.CreateCalendarEvents(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"post_mortem"}, mock.kinds)

	c, w = courseContext(http.MethodDelete, "/courses/PY101-2024/calendar-events?kind=course&kind=post_mortem", nil)
	handler.DeleteCalendarEvents(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"course", "post_mortem"}, mock.kinds)

	c, w = courseContext(http.MethodPost, "/courses/PY101-2024/calendar-events", nil)
	handler.CreateCalendarEvents(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, mock.kinds)
}

func TestIntegrationHandlerCertificates(t *testing.T) {
	mock := &integrationMock{}
	handler := newIntegrationHandlerForTest(mock)

	c, w := courseContext(http.MethodPost, "/courses/PY101-2024/certificates", []byte(`{"language":"fr"}`))
	handler.GenerateCertificates(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "fr", mock.language)

	mock.err = appErrors.Clone(appErrors.ErrValidation, `certificates are not available in "de"`)
	c, w = courseContext(http.MethodPost, "/courses/PY101-2024/certificates", []byte(`{"language":"de"}`))
	handler.GenerateCertificates(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
