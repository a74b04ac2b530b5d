package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	"github.com/noah-isme/workshop-orchestrator/internal/repository"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/eventbrite"
	"github.com/noah-isme/workshop-orchestrator/pkg/gcal"
	"github.com/noah-isme/workshop-orchestrator/pkg/jobs"
	"github.com/noah-isme/workshop-orchestrator/pkg/notify"
	"github.com/noah-isme/workshop-orchestrator/pkg/slack"
	"github.com/noah-isme/workshop-orchestrator/pkg/zoom"
)

var calendarHeader = []string{
	"course_id", "start_date", "end_date", "title", "code", "language",
	"instructor", "host", "assistants", "hours", "eventbrite_id", "zoom_id",
	"slack_channel", "private_gcal_id", "post_mortem_private_gcal_id",
}

// sheetStub is an in-memory spreadsheet range.
type sheetStub struct {
	rows     [][]string
	writes   int
	written  [][]string
	readErr  error
	writeErr error
}

func newSheetStub(rows ...[]string) *sheetStub {
	return &sheetStub{rows: append([][]string{calendarHeader}, rows...)}
}

func (s *sheetStub) Read(ctx context.Context, rng string) ([][]string, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([][]string, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (s *sheetStub) Write(ctx context.Context, rng string, values [][]string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes++
	s.written = values
	s.rows = values
	return nil
}

// cell returns the value of field in the n-th data row as last written.
func (s *sheetStub) cell(t *testing.T, n int, field string) string {
	t.Helper()
	require.Greater(t, len(s.rows), n+1, "row %d missing", n)
	for i, f := range s.rows[0] {
		if f == field {
			row := s.rows[n+1]
			if i < len(row) {
				return row[i]
			}
			return ""
		}
	}
	t.Fatalf("no column %s", field)
	return ""
}

// sessionRow builds a calendar row in calendarHeader order.
func sessionRow(courseID, start, end string, extra map[string]string) []string {
	values := map[string]string{
		"course_id":  courseID,
		"start_date": start,
		"end_date":   end,
		"title":      "Intro to Python",
		"code":       "PY101",
		"language":   "EN",
		"instructor": "ann",
		"host":       "bob",
		"assistants": "carl, ann",
		"hours":      "3",
	}
	for k, v := range extra {
		values[k] = v
	}
	row := make([]string, len(calendarHeader))
	for i, f := range calendarHeader {
		row[i] = values[f]
	}
	return row
}

func newCalendarSourceForTest(sheet *sheetStub) *CalendarSource {
	return NewCalendarSource(sheet, "A:O", nil)
}

func newTrainerDirectoryForTest(t *testing.T) *repository.TrainerRepository {
	t.Helper()
	dir, err := repository.NewTrainerRepository(map[string]models.Trainer{
		"ann":  {FirstName: "Ann", LastName: "Archer", Email: "ann@cq.org", ZoomEmail: "ann.zoom@cq.org", CalendarEmail: "ann.cal@cq.org"},
		"bob":  {FirstName: "Bob", LastName: "Baker", Email: "bob@cq.org", SlackEmail: "bob.slack@cq.org"},
		"carl": {FirstName: "Carl", LastName: "Cole", Email: "carl@cq.org"},
	})
	require.NoError(t, err)
	return dir
}

// eventbriteStub is a registration platform.
type eventbriteStub struct {
	events       map[string]*eventbrite.Event
	byDate       map[string]*eventbrite.Event
	attendees    map[string][]eventbrite.Attendee
	attendeesErr error
	findCalls    int
}

func (e *eventbriteStub) GetEvent(ctx context.Context, eventID string) (*eventbrite.Event, error) {
	ev, ok := e.events[eventID]
	if !ok {
		return nil, &eventbrite.APIError{StatusCode: 404, Code: "NOT_FOUND"}
	}
	return ev, nil
}

func (e *eventbriteStub) FindEventStartingOn(ctx context.Context, date string) (*eventbrite.Event, error) {
	e.findCalls++
	return e.byDate[date], nil
}

func (e *eventbriteStub) Attendees(ctx context.Context, eventID string) ([]eventbrite.Attendee, error) {
	if e.attendeesErr != nil {
		return nil, e.attendeesErr
	}
	return e.attendees[eventID], nil
}

func attendee(email, first, last, status string) eventbrite.Attendee {
	return eventbrite.Attendee{
		ID:      email,
		OrderID: "o-" + first,
		Status:  status,
		Profile: eventbrite.Profile{Name: first + " " + last, FirstName: first, LastName: last, Email: email},
	}
}

// zoomStub is a webinar platform.
type zoomStub struct {
	webinars        map[string]*zoom.Webinar
	byDate          map[string]*zoom.Webinar
	participants    map[string][]zoom.Participant
	participantsErr error
	panelists       []zoom.Panelist
	added           []zoom.Panelist
	lastLocation    *time.Location
}

func (z *zoomStub) GetWebinar(ctx context.Context, webinarID string) (*zoom.Webinar, error) {
	w, ok := z.webinars[webinarID]
	if !ok {
		return nil, &zoom.APIError{StatusCode: 404, Code: 3001, Message: "Webinar does not exist"}
	}
	return w, nil
}

func (z *zoomStub) FindWebinarOn(ctx context.Context, date string, loc *time.Location) (*zoom.Webinar, error) {
	z.lastLocation = loc
	return z.byDate[date], nil
}

func (z *zoomStub) Participants(ctx context.Context, webinarID string) ([]zoom.Participant, error) {
	if z.participantsErr != nil {
		return nil, z.participantsErr
	}
	return z.participants[webinarID], nil
}

func (z *zoomStub) Panelists(ctx context.Context, webinarID string) ([]zoom.Panelist, error) {
	return z.panelists, nil
}

func (z *zoomStub) AddPanelists(ctx context.Context, webinarID string, panelists []zoom.Panelist) error {
	z.added = append(z.added, panelists...)
	return nil
}

// slackStub is a chat platform.
type slackStub struct {
	channels  map[string]string
	users     map[string]string
	invited   []string
	bookmarks []slack.Bookmark
	archived  []string
	created   []string
}

func newSlackStub() *slackStub {
	return &slackStub{channels: map[string]string{}, users: map[string]string{}}
}

func (s *slackStub) CreateChannel(ctx context.Context, name string) (string, error) {
	if id, ok := s.channels[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("C%03d", len(s.channels)+1)
	s.channels[name] = id
	s.created = append(s.created, name)
	return id, nil
}

func (s *slackStub) FindChannel(ctx context.Context, name string) (string, error) {
	return s.channels[name], nil
}

func (s *slackStub) UserIDByEmail(ctx context.Context, email string) (string, error) {
	return s.users[email], nil
}

func (s *slackStub) Invite(ctx context.Context, channelID string, userIDs ...string) error {
	s.invited = append(s.invited, userIDs...)
	return nil
}

func (s *slackStub) SetBookmarks(ctx context.Context, channelID string, bookmarks []slack.Bookmark) error {
	s.bookmarks = bookmarks
	return nil
}

func (s *slackStub) Archive(ctx context.Context, channelID string) error {
	s.archived = append(s.archived, channelID)
	return nil
}

// gcalStub is the trainers' private calendar.
type gcalStub struct {
	inserted  []gcal.Event
	deleted   []string
	failTitle string
}

func (g *gcalStub) Insert(ctx context.Context, ev gcal.Event) (string, error) {
	if g.failTitle != "" && ev.Summary == g.failTitle {
		return "", errors.New("calendar unavailable")
	}
	g.inserted = append(g.inserted, ev)
	return fmt.Sprintf("evt-%d", len(g.inserted)), nil
}

func (g *gcalStub) Delete(ctx context.Context, eventID string) error {
	g.deleted = append(g.deleted, eventID)
	return nil
}

// auditRunStoreStub keeps audit runs in memory.
type auditRunStoreStub struct {
	mu        sync.Mutex
	runs      map[string]*models.AuditRun
	createErr error
	updates   []repository.UpdateAuditRunParams
}

func newAuditRunStoreStub() *auditRunStoreStub {
	return &auditRunStoreStub{runs: map[string]*models.AuditRun{}}
}

func (s *auditRunStoreStub) Create(ctx context.Context, run *models.AuditRun) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	run.CreatedAt, run.UpdatedAt = now, now
	clone := *run
	s.runs[run.ID] = &clone
	return nil
}

func (s *auditRunStoreStub) GetByID(ctx context.Context, id string) (*models.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "audit run %s not found", id)
	}
	clone := *run
	return &clone, nil
}

func (s *auditRunStoreStub) ListByCourse(ctx context.Context, courseID string, limit int) ([]models.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditRun
	for _, run := range s.runs {
		if run.CourseID == courseID {
			out = append(out, *run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *auditRunStoreStub) Update(ctx context.Context, id string, params repository.UpdateAuditRunParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return appErrors.ErrNotFound
	}
	s.updates = append(s.updates, params)
	if params.Status != nil {
		run.Status = *params.Status
	}
	if params.Report != nil {
		run.Report = params.Report
	}
	if params.ResultURL != nil {
		url := *params.ResultURL
		run.ResultURL = &url
	}
	if params.ErrorMessage != nil {
		msg := *params.ErrorMessage
		run.ErrorMessage = &msg
	}
	if params.FinishedAt != nil {
		at := *params.FinishedAt
		run.FinishedAt = &at
	}
	return nil
}

func (s *auditRunStoreStub) ListQueued(ctx context.Context, limit int) ([]models.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditRun
	for _, run := range s.runs {
		if run.Status == models.AuditStatusQueued || run.Status == models.AuditStatusProcessing {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (s *auditRunStoreStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditRun
	for _, run := range s.runs {
		if run.Status == models.AuditStatusFinished && run.FinishedAt != nil && run.FinishedAt.Before(cutoff) {
			out = append(out, *run)
		}
	}
	return out, nil
}

// dispatcherStub records enqueued jobs.
type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

// notifierStub records published notifications.
type notifierStub struct {
	sent []notify.AuditNotification
	err  error
}

func (n *notifierStub) PublishAudit(ctx context.Context, msg notify.AuditNotification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}
