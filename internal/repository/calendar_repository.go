package repository

import (
	"context"
	"strings"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

// DefaultCalendarRange is the spreadsheet range used when none is configured.
const DefaultCalendarRange = "A:Z"

// SpreadsheetStore reads and overwrites a rectangular range of cells.
type SpreadsheetStore interface {
	Read(ctx context.Context, rng string) ([][]string, error)
	Write(ctx context.Context, rng string, values [][]string) error
}

// CalendarRepository mirrors the calendar spreadsheet as courses of sessions.
// It is owned by a single caller; setters only change memory and Flush writes
// the whole range back.
type CalendarRepository struct {
	store     SpreadsheetStore
	rangeName string

	header   *models.Header
	rows     []*models.Session
	courses  []*models.Course
	index    map[string]*models.Course
	modified bool
}

// LoadCalendar reads the range from store and builds a repository.
func LoadCalendar(ctx context.Context, store SpreadsheetStore, rangeName string) (*CalendarRepository, error) {
	if rangeName == "" {
		rangeName = DefaultCalendarRange
	}
	rows, err := store.Read(ctx, rangeName)
	if err != nil {
		return nil, err
	}
	return NewCalendarRepository(rows, store, rangeName)
}

// NewCalendarRepository builds a repository from raw rows; rows[0] is the header.
// A nil store gives a read-only repository whose Flush fails.
func NewCalendarRepository(rows [][]string, store SpreadsheetStore, rangeName string) (*CalendarRepository, error) {
	if rangeName == "" {
		rangeName = DefaultCalendarRange
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, "calendar header is empty")
	}

	fields := rows[0]
	if err := validateHeader(fields, rangeName); err != nil {
		return nil, err
	}

	r := &CalendarRepository{
		store:     store,
		rangeName: rangeName,
		header:    models.NewHeader(fields),
		rows:      make([]*models.Session, 0, len(rows)-1),
		index:     make(map[string]*models.Course),
	}

	for i, row := range rows[1:] {
		if len(row) > len(fields) {
			return nil, appErrors.Clonef(appErrors.ErrSchema, "calendar row %d has %d cells, header has %d", i+2, len(row), len(fields))
		}
		session := models.NewSession(r.header, row)
		r.rows = append(r.rows, session)

		id := session.CourseID()
		course, ok := r.index[id]
		if !ok {
			course = &models.Course{ID: id}
			r.index[id] = course
			r.courses = append(r.courses, course)
		}
		course.Sessions = append(course.Sessions, session)
	}

	return r, nil
}

func validateHeader(fields []string, rangeName string) error {
	if span := rangeColumnSpan(rangeName); span > 0 && len(fields) > span {
		return appErrors.Clonef(appErrors.ErrSchema, "calendar header has %d columns, range %s allows %d", len(fields), rangeName, span)
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f) == "" {
			return appErrors.Clonef(appErrors.ErrSchema, "calendar header column %d is blank", i+1)
		}
		if _, dup := seen[f]; dup {
			return appErrors.Clonef(appErrors.ErrSchema, "calendar header repeats column %q", f)
		}
		seen[f] = struct{}{}
	}
	if _, ok := seen[models.FieldCourseID]; !ok {
		return appErrors.Clonef(appErrors.ErrSchema, "calendar header has no %q column", models.FieldCourseID)
	}
	return nil
}

// rangeColumnSpan returns the number of columns an A1 range covers, or 0 when
// the range does not bound its columns.
func rangeColumnSpan(rng string) int {
	if i := strings.LastIndex(rng, "!"); i >= 0 {
		rng = rng[i+1:]
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 2 {
		return 0
	}
	start, end := columnNumber(parts[0]), columnNumber(parts[1])
	if start == 0 || end == 0 || end < start {
		return 0
	}
	return end - start + 1
}

func columnNumber(ref string) int {
	n := 0
	for _, c := range strings.ToUpper(ref) {
		if c < 'A' || c > 'Z' {
			break
		}
		n = n*26 + int(c-'A'+1)
	}
	return n
}

// Header returns the column names in order.
func (r *CalendarRepository) Header() []string {
	return r.header.Fields()
}

// Range is the spreadsheet range the repository reads and writes.
func (r *CalendarRepository) Range() string {
	return r.rangeName
}

// Courses returns the courses in first-seen order. The courses are live views.
func (r *CalendarRepository) Courses() []*models.Course {
	return append([]*models.Course(nil), r.courses...)
}

// Sessions returns every session, course by course, then in row order.
func (r *CalendarRepository) Sessions() []*models.Session {
	sessions := make([]*models.Session, 0, len(r.rows))
	for _, c := range r.courses {
		sessions = append(sessions, c.Sessions...)
	}
	return sessions
}

// Lookup returns the course with the given id.
func (r *CalendarRepository) Lookup(courseID string) (*models.Course, error) {
	course, ok := r.index[courseID]
	if !ok {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "course %q not found in calendar", courseID)
	}
	return course, nil
}

// SessionsOn returns the sessions whose start_date falls on date (YYYY-MM-DD).
func (r *CalendarRepository) SessionsOn(date string) []*models.Session {
	var sessions []*models.Session
	for _, s := range r.Sessions() {
		if date != "" && strings.HasPrefix(strings.TrimSpace(s.StartDate()), date) {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// CoursesStartingOn returns the courses whose first session starts on date.
func (r *CalendarRepository) CoursesStartingOn(date string) []*models.Course {
	var courses []*models.Course
	for _, c := range r.courses {
		if date != "" && strings.HasPrefix(strings.TrimSpace(c.FirstSession().StartDate()), date) {
			courses = append(courses, c)
		}
	}
	return courses
}

// EquipeTechno returns the technical team keys of a course.
func (r *CalendarRepository) EquipeTechno(courseID string) ([]string, error) {
	course, err := r.Lookup(courseID)
	if err != nil {
		return nil, err
	}
	return course.TrainerKeys(models.FieldEquipeTechno), nil
}

// SetEventbriteID records the registration event on every session of the course.
func (r *CalendarRepository) SetEventbriteID(courseID, value string) error {
	return r.SetCourseField(courseID, models.FieldEventbriteID, value)
}

// SetZoomID records the webinar on every session of the course.
func (r *CalendarRepository) SetZoomID(courseID, value string) error {
	return r.SetCourseField(courseID, models.FieldZoomID, value)
}

// SetSlackChannel records the chat channel on every session of the course.
func (r *CalendarRepository) SetSlackChannel(courseID, value string) error {
	return r.SetCourseField(courseID, models.FieldSlackChannel, value)
}

// SetPublicGCalID records the public calendar event of one session.
func (r *CalendarRepository) SetPublicGCalID(courseID, startDate, value string) error {
	return r.SetSessionField(courseID, startDate, models.FieldPublicGCalID, value)
}

// SetPrivateGCalID records the trainers' calendar event of one session.
func (r *CalendarRepository) SetPrivateGCalID(courseID, startDate, value string) error {
	return r.SetSessionField(courseID, startDate, models.FieldPrivateGCalID, value)
}

// SetPostMortemPrivateGCalID records the post-mortem event of one session.
func (r *CalendarRepository) SetPostMortemPrivateGCalID(courseID, startDate, value string) error {
	return r.SetSessionField(courseID, startDate, models.FieldPostMortemPrivateGCalID, value)
}

// SetCourseField assigns value to field on every session of the course.
func (r *CalendarRepository) SetCourseField(courseID, field, value string) error {
	if err := r.requireField(field); err != nil {
		return err
	}
	course, err := r.Lookup(courseID)
	if err != nil {
		return err
	}
	for _, s := range course.Sessions {
		if err := s.Set(field, value); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, err.Error())
		}
	}
	r.modified = true
	return nil
}

// SetSessionField assigns value to field on the sessions of the course whose
// start_date equals startDate exactly. It fails without changing anything
// when no session matches.
func (r *CalendarRepository) SetSessionField(courseID, startDate, field, value string) error {
	if err := r.requireField(field); err != nil {
		return err
	}
	course, err := r.Lookup(courseID)
	if err != nil {
		return err
	}
	matched := 0
	for _, s := range course.Sessions {
		if s.StartDate() != startDate || s.IsNull(models.FieldStartDate) {
			continue
		}
		if err := s.Set(field, value); err != nil {
			return appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, err.Error())
		}
		matched++
	}
	if matched == 0 {
		return appErrors.Clonef(appErrors.ErrSessionNotFound, "course %q has no session starting at %q", courseID, startDate)
	}
	r.modified = true
	return nil
}

func (r *CalendarRepository) requireField(field string) error {
	if !r.header.Has(field) {
		return appErrors.Clonef(appErrors.ErrSchema, "calendar has no %q column", field)
	}
	return nil
}

// Modified reports whether a setter succeeded since load or the last Flush.
func (r *CalendarRepository) Modified() bool {
	return r.modified
}

// Grid serialises the header and every session, course by course and in row
// order within a course. Rows of a course scattered through the sheet are
// regrouped under its first row.
func (r *CalendarRepository) Grid() [][]string {
	grid := make([][]string, 0, len(r.rows)+1)
	grid = append(grid, r.header.Fields())
	for _, s := range r.Sessions() {
		grid = append(grid, s.Row())
	}
	return grid
}

// Flush overwrites the backing range with Grid. Store errors are returned as is.
func (r *CalendarRepository) Flush(ctx context.Context) error {
	if r.store == nil {
		return appErrors.Clone(appErrors.ErrConfig, "calendar repository has no backing store")
	}
	if err := r.store.Write(ctx, r.rangeName, r.Grid()); err != nil {
		return err
	}
	r.modified = false
	return nil
}
