package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

func TestWebinarServiceLink(t *testing.T) {
	sheet := newSheetStub(sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", nil))
	webinars := &zoomStub{byDate: map[string]*zoom.Webinar{"2024-03-05": {ID: 81234567890}}}
	loc, err := time.LoadLocation("America/Montreal")
	require.NoError(t, err)
	svc := NewWebinarService(newCalendarSourceForTest(sheet), webinars, newTrainerDirectoryForTest(t), loc, nil, nil)

	resp, err := svc.Link(context.Background(), "PY101-2024")
	require.NoError(t, err)
	assert.Equal(t, "81234567890", resp.Value)
	assert.Equal(t, "81234567890", sheet.cell(t, 0, "zoom_id"))
	assert.Equal(t, loc, webinars.lastLocation)
}

func TestWebinarServiceLinkMissingWebinar(t *testing.T) {
	sheet := newSheetStub(sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", nil))
	svc := NewWebinarService(newCalendarSourceForTest(sheet), &zoomStub{}, newTrainerDirectoryForTest(t), nil, nil, nil)

	_, err := svc.Link(context.Background(), "PY101-2024")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestWebinarServiceSyncPanelists(t *testing.T) {
	sheet := newSheetStub(
		sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", map[string]string{"zoom_id": "81", "assistants": "carl, eve"}),
	)
	webinars := &zoomStub{panelists: []zoom.Panelist{{Name: "Bob Baker", Email: "BOB@cq.org"}}}
	svc := NewWebinarService(newCalendarSourceForTest(sheet), webinars, newTrainerDirectoryForTest(t), nil, nil, nil)

	resp, err := svc.SyncPanelists(context.Background(), "PY101-2024")
	require.NoError(t, err)

	assert.Equal(t, []string{"ann.zoom@cq.org", "carl@cq.org"}, resp.Added)
	assert.Equal(t, []string{"eve"}, resp.Missing)
	assert.Equal(t, []zoom.Panelist{
		{Name: "Ann Archer", Email: "ann.zoom@cq.org"},
		{Name: "Carl Cole", Email: "carl@cq.org"},
	}, webinars.added)
	assert.Zero(t, sheet.writes)
}

func TestWebinarServiceSyncPanelistsRequiresWebinar(t *testing.T) {
	sheet := newSheetStub(sessionRow("PY101-2024", "2024-03-05 13:00:00", "2024-03-05 16:00:00", nil))
	svc := NewWebinarService(newCalendarSourceForTest(sheet), &zoomStub{}, newTrainerDirectoryForTest(t), nil, nil, nil)

	_, err := svc.SyncPanelists(context.Background(), "PY101-2024")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
