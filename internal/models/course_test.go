package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = NewHeader([]string{FieldCourseID, FieldStartDate, FieldEndDate, FieldInstructor, FieldHost, FieldAssistants, FieldHours, FieldZoomID})

func TestSessionNullsAndRow(t *testing.T) {
	s := NewSession(testHeader, []string{"PY101", "2024-03-05 09:00:00", "", "jdupont"})

	assert.Equal(t, testHeader.Fields(), s.Fields())
	v, ok := s.Get(FieldEndDate)
	assert.True(t, ok, "an empty cell is not null")
	assert.Equal(t, "", v)
	assert.True(t, s.IsNull(FieldHost))
	assert.True(t, s.IsNull("not_a_column"))
	assert.Equal(t, []string{"PY101", "2024-03-05 09:00:00", "", "jdupont"}, s.Row())

	require.NoError(t, s.Set(FieldZoomID, "81"))
	assert.Equal(t, []string{"PY101", "2024-03-05 09:00:00", "", "jdupont", "", "", "", "81"}, s.Row())
	assert.Error(t, s.Set("slack", "x"))

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"course_id":"PY101","start_date":"2024-03-05 09:00:00","end_date":"","instructor":"jdupont","host":null,"assistants":null,"hours":null,"zoom_id":"81"}`, string(raw))
}

func TestParseSessionTime(t *testing.T) {
	montreal, err := time.LoadLocation("America/Montreal")
	require.NoError(t, err)

	local, err := ParseSessionTime("2024-03-05 09:00:00", montreal)
	require.NoError(t, err)
	assert.Equal(t, montreal, local.Location())
	assert.Equal(t, 14, local.UTC().Hour())

	offset, err := ParseSessionTime("2024-03-05T09:00:00Z", montreal)
	require.NoError(t, err)
	assert.True(t, offset.Equal(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)))

	day, err := ParseSessionTime(" 2024-03-05 ", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseSessionTime("05/03/2024", nil)
	assert.Error(t, err)
}

func TestSessionHours(t *testing.T) {
	hours, err := NewSession(testHeader, []string{"PY101", "", "", "", "", "", "3,5"}).Hours()
	require.NoError(t, err)
	assert.Equal(t, 3.5, hours)

	_, err = NewSession(testHeader, []string{"PY101"}).Hours()
	assert.Error(t, err)
}

func TestCourseSpanAndLatestSession(t *testing.T) {
	course := &Course{ID: "PY101", Sessions: []*Session{
		NewSession(testHeader, []string{"PY101", "2024-03-06 09:00:00", "2024-03-06 12:00:00"}),
		NewSession(testHeader, []string{"PY101", "2024-03-05 13:00:00", "2024-03-05 16:00:00"}),
		NewSession(testHeader, []string{"PY101", "2024-03-07 09:00:00", "2024-03-07 11:00:00"}),
	}}

	start, err := course.Start(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), start)

	end, err := course.End(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 7, 11, 0, 0, 0, time.UTC), end)

	latest, err := course.LatestSession(time.UTC)
	require.NoError(t, err)
	assert.Same(t, course.Sessions[2], latest)
	assert.Same(t, course.Sessions[0], course.FirstSession())

	broken := &Course{ID: "BAD", Sessions: []*Session{NewSession(testHeader, []string{"BAD", "soon", "later"})}}
	_, err = broken.Start(time.UTC)
	assert.ErrorContains(t, err, "course BAD")

	_, err = (&Course{ID: "EMPTY"}).LatestSession(time.UTC)
	assert.Error(t, err)
}

func TestCourseTrainerKeys(t *testing.T) {
	course := &Course{ID: "PY101", Sessions: []*Session{
		NewSession(testHeader, []string{"PY101", "", "", "jdupont", "asmith", "mlee, ,asmith"}),
		NewSession(testHeader, []string{"PY101", "", "", "kwong", "jdupont", "mlee,rchen "}),
	}}

	assert.Equal(t, []string{"jdupont", "asmith", "mlee", "kwong", "rchen"}, course.TrainerKeys(FieldInstructor, FieldHost, FieldAssistants))
	assert.Equal(t, []string{"mlee", "asmith", "rchen"}, course.TrainerKeys(FieldAssistants))
	assert.Empty(t, course.TrainerKeys(FieldZoomID))
}
