package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar field names with a semantic role.
const (
	FieldCourseID                = "course_id"
	FieldStartDate               = "start_date"
	FieldEndDate                 = "end_date"
	FieldTitle                   = "title"
	FieldCode                    = "code"
	FieldLanguage                = "language"
	FieldInstructor              = "instructor"
	FieldHost                    = "host"
	FieldAssistants              = "assistants"
	FieldEquipeTechno            = "equipe_techno"
	FieldHours                   = "hours"
	FieldTemplate                = "template"
	FieldEventbriteID            = "eventbrite_id"
	FieldZoomID                  = "zoom_id"
	FieldSlackChannel            = "slack_channel"
	FieldPublicGCalID            = "public_gcal_id"
	FieldPrivateGCalID           = "private_gcal_id"
	FieldPostMortemPrivateGCalID = "post_mortem_private_gcal_id"
)

var sessionTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Header is the ordered, authoritative list of calendar field names.
type Header struct {
	fields []string
	index  map[string]int
}

// NewHeader indexes the field names. Callers validate uniqueness beforehand.
func NewHeader(fields []string) *Header {
	h := &Header{fields: append([]string(nil), fields...), index: make(map[string]int, len(fields))}
	for i, f := range h.fields {
		h.index[f] = i
	}
	return h
}

// Fields returns a copy of the field names in column order.
func (h *Header) Fields() []string {
	return append([]string(nil), h.fields...)
}

// Len is the number of columns.
func (h *Header) Len() int {
	return len(h.fields)
}

// Has reports whether the field is a column.
func (h *Header) Has(field string) bool {
	_, ok := h.index[field]
	return ok
}

// Session is one calendar row. Every session carries exactly the header's
// fields; a nil value means the cell was absent from the row.
type Session struct {
	header *Header
	values []*string
}

// NewSession maps row cells onto the header. Positions past the end of the
// row are null.
func NewSession(header *Header, row []string) *Session {
	s := &Session{header: header, values: make([]*string, header.Len())}
	for i := 0; i < len(row) && i < header.Len(); i++ {
		v := row[i]
		s.values[i] = &v
	}
	return s
}

// Fields returns the session's field names in header order.
func (s *Session) Fields() []string {
	return s.header.Fields()
}

// Get returns the value of field and whether it is non-null.
func (s *Session) Get(field string) (string, bool) {
	i, ok := s.header.index[field]
	if !ok || s.values[i] == nil {
		return "", false
	}
	return *s.values[i], true
}

// Value is Get without the presence flag.
func (s *Session) Value(field string) string {
	v, _ := s.Get(field)
	return v
}

// IsNull reports whether field is absent from the row or not a column at all.
func (s *Session) IsNull(field string) bool {
	_, ok := s.Get(field)
	return !ok
}

// Set assigns value to field. It fails when field is not a header column.
func (s *Session) Set(field, value string) error {
	i, ok := s.header.index[field]
	if !ok {
		return fmt.Errorf("field %q is not a calendar column", field)
	}
	s.values[i] = &value
	return nil
}

// Row serialises the session in header order. Trailing nulls are omitted and
// interior nulls become empty cells, so an untouched session reproduces the
// row it was read from.
func (s *Session) Row() []string {
	last := -1
	for i, v := range s.values {
		if v != nil {
			last = i
		}
	}
	row := make([]string, last+1)
	for i := 0; i <= last; i++ {
		if s.values[i] != nil {
			row[i] = *s.values[i]
		}
	}
	return row
}

// MarshalJSON emits the fields in header order, nulls included.
func (s *Session) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range s.header.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if s.values[i] == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*s.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Session) CourseID() string     { return s.Value(FieldCourseID) }
func (s *Session) StartDate() string    { return s.Value(FieldStartDate) }
func (s *Session) EndDate() string      { return s.Value(FieldEndDate) }
func (s *Session) Title() string        { return s.Value(FieldTitle) }
func (s *Session) Code() string         { return s.Value(FieldCode) }
func (s *Session) Language() string     { return strings.ToLower(strings.TrimSpace(s.Value(FieldLanguage))) }
func (s *Session) Template() string     { return s.Value(FieldTemplate) }
func (s *Session) EventbriteID() string { return s.Value(FieldEventbriteID) }
func (s *Session) ZoomID() string       { return s.Value(FieldZoomID) }
func (s *Session) SlackChannel() string { return s.Value(FieldSlackChannel) }
func (s *Session) PublicGCalID() string { return s.Value(FieldPublicGCalID) }
func (s *Session) PrivateGCalID() string {
	return s.Value(FieldPrivateGCalID)
}
func (s *Session) PostMortemPrivateGCalID() string {
	return s.Value(FieldPostMortemPrivateGCalID)
}

// Instructor returns the instructor's trainer key.
func (s *Session) Instructor() string { return strings.TrimSpace(s.Value(FieldInstructor)) }

// Host returns the host's trainer key.
func (s *Session) Host() string { return strings.TrimSpace(s.Value(FieldHost)) }

// Assistants splits the comma-separated assistant keys.
func (s *Session) Assistants() []string { return SplitKeys(s.Value(FieldAssistants)) }

// EquipeTechno splits the comma-separated technical team keys.
func (s *Session) EquipeTechno() []string { return SplitKeys(s.Value(FieldEquipeTechno)) }

// Hours parses the session length in hours.
func (s *Session) Hours() (float64, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(s.Value(FieldHours), ",", "."))
	if raw == "" {
		return 0, fmt.Errorf("session %s on %s has no hours", s.CourseID(), s.StartDate())
	}
	return strconv.ParseFloat(raw, 64)
}

// StartTime parses start_date; values without an offset are read in loc.
func (s *Session) StartTime(loc *time.Location) (time.Time, error) {
	return ParseSessionTime(s.StartDate(), loc)
}

// EndTime parses end_date; values without an offset are read in loc.
func (s *Session) EndTime(loc *time.Location) (time.Time, error) {
	return ParseSessionTime(s.EndDate(), loc)
}

// ParseSessionTime accepts RFC 3339 and the calendar's local layouts.
func ParseSessionTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range sessionTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable session date %q", raw)
}

// SplitKeys splits a comma-separated key list, dropping blanks.
func SplitKeys(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
